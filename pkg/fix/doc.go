// Package fix 为 FIX 风格的 tag=value 文本提供纯计算工具：
// 归一化与拆行、记录解析、按请求类型聚簇与排序、按 tag 过滤重序列化、
// 以及记录级/文件级比对。
//
// 本包不做任何 I/O，不持有跨调用状态；所有函数对任意文本输入都不会失败，
// 畸形片段只会导致提取到的 tag 变少。
//
// 已知限制：值内部的 '|' 或 '=' 不做转义处理，会被当作分隔符解析。
package fix
