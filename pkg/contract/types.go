package contract

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Meta: 可选的轻量元信息；核心流程不读取其键值。
type Meta map[string]string
