package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Inputs      []string `json:"inputs"`
	Concurrency int      `json:"concurrency"`
	Logging     Logging  `json:"logging"`
	Metrics     Metrics  `json:"metrics"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`

	// 比较器参数（compare 子命令）。
	Compare Compare `json:"compare"`
}

// Logging: 日志等级与目录；轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// Metrics: 非空时运行结束写出 prometheus 文本格式。
type Metrics struct {
	Textfile string `json:"textfile"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader    string `json:"reader"`
	Splitter  string `json:"splitter"`
	Orderer   string `json:"orderer"`
	Assembler string `json:"assembler"`
	Writer    string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader    json.RawMessage `json:"reader,omitempty"`
	Splitter  json.RawMessage `json:"splitter,omitempty"`
	Orderer   json.RawMessage `json:"orderer,omitempty"`
	Assembler json.RawMessage `json:"assembler,omitempty"`
	Writer    json.RawMessage `json:"writer,omitempty"`
}

// Compare: 比较模式、文件级匹配键与输出格式。
type Compare struct {
	// Mode: "values"（比较取值）或 "tags"（仅比较存在性）。
	Mode string `json:"mode"`
	// KeyTags: 文件级比较的组合键 tag，缺省 11,17,37。
	KeyTags []string `json:"key_tags"`
	// Format: "text" 或 "json"。
	Format string `json:"format"`
}
