package contract

import (
	"context"
	"io"

	"fixify/pkg/fix"
)

// Assembler: 将已排序记录重新序列化为最终文本（单文件）。
// 约束：
//  1. 保持入参顺序，一条记录一行，'\n' 分隔；
//  2. 仅基于记录原始片段输出；
//  3. 不引入跨文件状态。
type Assembler interface {
	Assemble(ctx context.Context, fileID FileID, records []fix.Record) (io.Reader, error)
}
