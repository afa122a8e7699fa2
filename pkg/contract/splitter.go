package contract

import (
	"context"
	"io"

	"fixify/pkg/fix"
)

// Splitter: 将单文件字节流拆为有序的已解析消息。
// 约束：
// 1) 不跨文件合并；
// 2) 记录携带 1 起始的源行号；
// 3) 空行丢弃，畸形片段保留在 Raw 中；
// 4) 无内部并发、幂等；
// 5) 不接受的文件返回 ErrSkipFile（调用方跳过而非失败）。
type Splitter interface {
	Split(ctx context.Context, fileID FileID, r io.Reader) ([]fix.Record, error)
}
