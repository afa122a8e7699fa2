package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"fixify/pkg/fix"
)

// EnvPrefix 为全部环境变量覆盖项的前缀。
const EnvPrefix = "FIXIFY_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Concurrency: 1,
		Logging:     Logging{Level: "info", Dir: "logs"},
		Components: Components{
			Reader:    "fs",
			Splitter:  "fixlines",
			Orderer:   "cluster",
			Assembler: "tagfilter",
			Writer:    "fs",
		},
		Compare: Compare{
			Mode:    string(fix.CompareValues),
			KeyTags: fix.DefaultKeyTags(),
			Format:  "text",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	return decodeStrict(r)
}

// LoadFile 按扩展名选择解析器：.yaml/.yml 走 YAML，其余按 JSON。
// YAML 先转为 JSON 再严格解码，两种格式共享同一套字段与校验。
func LoadFile(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		return LoadYAML(b)
	default:
		return LoadJSON(path, nil)
	}
}

// LoadYAML 解析 YAML 文本。
func LoadYAML(b []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	if doc == nil {
		return Config{}, nil
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	return decodeStrict(bytes.NewReader(js))
}

func decodeStrict(r io.Reader) (Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if v := strings.TrimSpace(over.Logging.Level); v != "" {
		out.Logging.Level = v
	}
	if v := strings.TrimSpace(over.Logging.Dir); v != "" {
		out.Logging.Dir = v
	}
	if v := strings.TrimSpace(over.Metrics.Textfile); v != "" {
		out.Metrics.Textfile = v
	}

	// 组件名（空不覆盖）
	mergeName(&out.Components.Reader, over.Components.Reader)
	mergeName(&out.Components.Splitter, over.Components.Splitter)
	mergeName(&out.Components.Orderer, over.Components.Orderer)
	mergeName(&out.Components.Assembler, over.Components.Assembler)
	mergeName(&out.Components.Writer, over.Components.Writer)

	// Options（完整替换对应键）
	mergeRaw(&out.Options.Reader, over.Options.Reader)
	mergeRaw(&out.Options.Splitter, over.Options.Splitter)
	mergeRaw(&out.Options.Orderer, over.Options.Orderer)
	mergeRaw(&out.Options.Assembler, over.Options.Assembler)
	mergeRaw(&out.Options.Writer, over.Options.Writer)

	mergeName(&out.Compare.Mode, over.Compare.Mode)
	mergeName(&out.Compare.Format, over.Compare.Format)
	if len(over.Compare.KeyTags) > 0 {
		out.Compare.KeyTags = cloneStrings(over.Compare.KeyTags)
	}
	return out
}

func mergeName(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func mergeRaw(dst *json.RawMessage, v json.RawMessage) {
	if len(v) > 0 {
		*dst = cloneRaw(v)
	}
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 支持：INPUTS, CONCURRENCY, LOG_LEVEL, LOG_DIR, METRICS_TEXTFILE, COMPONENTS_*,
// OPTIONS_<COMPONENT>_JSON, COMPARE_MODE, COMPARE_KEY_TAGS, COMPARE_FORMAT。
// 空值视为未设置；OPTIONS_*_JSON 非法时返回错误。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(kv[:eq], EnvPrefix)
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			continue
		}
		switch key {
		case "INPUTS":
			over.Inputs = splitComma(val)
		case "CONCURRENCY":
			v, err := atoi(val)
			if err != nil {
				return over, fmt.Errorf("env %sCONCURRENCY: %w", EnvPrefix, err)
			}
			over.Concurrency = v
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_DIR":
			over.Logging.Dir = val
		case "METRICS_TEXTFILE":
			over.Metrics.Textfile = val
		case "COMPONENTS_READER":
			over.Components.Reader = val
		case "COMPONENTS_SPLITTER":
			over.Components.Splitter = val
		case "COMPONENTS_ORDERER":
			over.Components.Orderer = val
		case "COMPONENTS_ASSEMBLER":
			over.Components.Assembler = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "COMPARE_MODE":
			over.Compare.Mode = val
		case "COMPARE_KEY_TAGS":
			over.Compare.KeyTags = splitComma(val)
		case "COMPARE_FORMAT":
			over.Compare.Format = val
		default:
			if dst := optionSlot(&over.Options, key); dst != nil {
				if !json.Valid([]byte(val)) {
					return over, fmt.Errorf("env %s%s: invalid JSON", EnvPrefix, key)
				}
				*dst = json.RawMessage(val)
			}
			// 其他键忽略
		}
	}
	return over, nil
}

// optionSlot 将 OPTIONS_<COMPONENT>_JSON 映射到对应的原样 JSON 槽位。
func optionSlot(o *Options, key string) *json.RawMessage {
	switch key {
	case "OPTIONS_READER_JSON":
		return &o.Reader
	case "OPTIONS_SPLITTER_JSON":
		return &o.Splitter
	case "OPTIONS_ORDERER_JSON":
		return &o.Orderer
	case "OPTIONS_ASSEMBLER_JSON":
		return &o.Assembler
	case "OPTIONS_WRITER_JSON":
		return &o.Writer
	}
	return nil
}

// LoadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
// - 忽略不存在的文件；无法读取时返回错误（但调用处可忽略）。
// - 跳过空行与以 # 开头的行；支持可选的前缀 "export "。
// - 仅按首个 '=' 分割；成对单/双引号去除外层，双引号内处理 \n \t \r \" \\。
// - 不覆盖已存在的环境变量。
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := unquote(strings.TrimSpace(line[eq+1:]))
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

func unquote(val string) string {
	if len(val) < 2 {
		return val
	}
	q := val[0]
	if (q != '\'' && q != '"') || val[len(val)-1] != q {
		return val
	}
	val = val[1 : len(val)-1]
	if q == '"' {
		val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\"`, `"`, `\\`, `\`).Replace(val)
	}
	return val
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
