package contract

import (
	"context"

	"fixify/pkg/fix"
)

// Orderer: 对单文件记录聚簇并确定输出顺序。
// 约束：输出必须是输入的一个排列（不增不减，不改写记录）；不引入跨文件状态。
type Orderer interface {
	Order(ctx context.Context, fileID FileID, records []fix.Record) ([]fix.Record, error)
}
