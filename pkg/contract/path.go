package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}

// DefaultOutputPrefix 为处理结果文件名的缺省前缀。
const DefaultOutputPrefix = "processed_"

// OutputName 返回产物文件名：prefix + 源文件基名。STDIN 映射为 "stdin.txt"。
func OutputName(id FileID, prefix string) string {
	base := path.Base(string(NormalizeFileID(string(id))))
	if id == "stdin" {
		base = "stdin.txt"
	}
	return prefix + base
}
