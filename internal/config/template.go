package config

import (
	"encoding/json"
	"strings"
)

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 默认输入为 STDIN（"-"），Writer 输出到 ./out 目录；
// - 组件名采用仓库内置实现；
// - 选项给出全部键与中性默认值。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Inputs = []string{"-"}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git", "node_modules", "vendor"],
  "extensions": [".txt", ".fix", ".log"],
  "include_hidden": false
}`)
	cfg.Options.Splitter = json.RawMessage(`{
  "max_line_bytes": 0,
  "allow_exts": [".txt", ".fix", ".log"]
}`)
	cfg.Options.Orderer = json.RawMessage(`{
  "sort_mode": "Mixed",
  "use_primary_tag": true,
  "primary_tag": "90052",
  "secondary_tag": "52",
  "request_types": ["D", "G", "F", "J", "AK", "AU"]
}`)
	cfg.Options.Assembler = json.RawMessage(`{
  "disallowed_tags": [],
  "trailing_newline": false
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "prefix": "processed_",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}

// DotEnvTemplate 返回 .env 模板文本（由 init-config 写出）。
// 优先级：CLI > ENV(.env) > 配置文件。
func DotEnvTemplate() string {
	var b strings.Builder
	b.WriteString("# fixify .env 模板（由 init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源（可二选一）\n")
	b.WriteString(EnvPrefix + "CONFIG_FILE=\n")
	b.WriteString(EnvPrefix + "CONFIG_JSON=\n\n")

	b.WriteString("# 运行参数覆盖\n")
	for _, k := range []string{"INPUTS", "CONCURRENCY", "LOG_LEVEL", "LOG_DIR", "METRICS_TEXTFILE"} {
		b.WriteString(EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 组件选择\n")
	for _, k := range []string{"READER", "SPLITTER", "ORDERER", "ASSEMBLER", "WRITER"} {
		b.WriteString(EnvPrefix + "COMPONENTS_" + k + "=\n")
	}
	b.WriteString("\n# 组件选项（整段 JSON，替换配置文件中的对应子树）\n")
	for _, k := range []string{"READER", "SPLITTER", "ORDERER", "ASSEMBLER", "WRITER"} {
		b.WriteString(EnvPrefix + "OPTIONS_" + k + "_JSON=\n")
	}
	b.WriteString("\n# 比较器\n")
	for _, k := range []string{"MODE", "KEY_TAGS", "FORMAT"} {
		b.WriteString(EnvPrefix + "COMPARE_" + k + "=\n")
	}
	return b.String()
}
