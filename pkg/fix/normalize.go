package fix

import "strings"

// Delimiter 为归一化之后的字段分隔符。
const Delimiter = "|"

// SOH 为 FIX 标准字段分隔控制字节（0x01）。
const SOH = "\x01"

// caretSOH 为 SOH 在日志中常见的可见转义形式。
const caretSOH = "^A"

var sohReplacer = strings.NewReplacer(SOH, Delimiter, caretSOH, Delimiter)

// Normalize 将 SOH 字节与 "^A" 统一替换为 '|'，并去除首尾空白。
// 对已是 '|' 分隔的文本仅做 trim，因而幂等。
func Normalize(raw string) string {
	return strings.TrimSpace(sohReplacer.Replace(raw))
}

// SplitLines 按换行拆分，逐行去除首尾空白（含 CRLF 的 '\r'），丢弃空行。
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
