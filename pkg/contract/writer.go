package contract

import (
	"context"
	"io"
)

// ArtifactID: 与 FileID 等价的持久化工件标识（语义别名）。
type ArtifactID = FileID

// Writer: 将装配结果持久化到目标介质（文件系统/归档包）。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. 按字节透传，不读取/修改业务内容；
//  3. ctx 取消/超时需尽快返回；
//  4. 错误直接上抛（不做重试/回退）。
//
// 需要收尾的实现（如归档包）另行实现 io.Closer，由流水线在全部文件完成后调用。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}
