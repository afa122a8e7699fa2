package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fixify/internal/diag"
	"fixify/internal/pipeline"
	"fixify/pkg/fix"
	"fixify/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("config: inputs empty (use - for STDIN)")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return errors.New("config: input path cannot be empty")
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return errors.New("config: '-' cannot be mixed with other roots")
	}
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" {
		switch strings.ToLower(lv) {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("config: unknown logging level %q", lv)
		}
	}
	if err := validateCompare(cfg.Compare); err != nil {
		return err
	}
	d := Defaults().Components
	if name := effName(cfg.Components.Reader, d.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered (have %v)", name, registry.Names(registry.Reader))
	}
	if name := effName(cfg.Components.Splitter, d.Splitter); registry.Splitter[name] == nil {
		return fmt.Errorf("config: splitter %q not registered (have %v)", name, registry.Names(registry.Splitter))
	}
	if name := effName(cfg.Components.Orderer, d.Orderer); registry.Orderer[name] == nil {
		return fmt.Errorf("config: orderer %q not registered (have %v)", name, registry.Names(registry.Orderer))
	}
	if name := effName(cfg.Components.Assembler, d.Assembler); registry.Assembler[name] == nil {
		return fmt.Errorf("config: assembler %q not registered (have %v)", name, registry.Names(registry.Assembler))
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered (have %v)", name, registry.Names(registry.Writer))
	}
	return nil
}

// ValidateCompare 仅校验比较器参数（compare 子命令不需要 inputs 与组件）。
func ValidateCompare(cfg Config) error { return validateCompare(cfg.Compare) }

func validateCompare(c Compare) error {
	if strings.TrimSpace(c.Mode) != "" {
		if _, err := fix.ParseCompareMode(c.Mode); err != nil {
			return fmt.Errorf("config: compare.mode: %w", err)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: compare.format %q (want text or json)", c.Format)
	}
	for _, t := range c.KeyTags {
		if strings.TrimSpace(t) == "" {
			return errors.New("config: compare.key_tags cannot contain empty tag")
		}
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	d := Defaults().Components
	r, err := registry.Reader[effName(cfg.Components.Reader, d.Reader)](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader: %w", err)
	}
	s, err := registry.Splitter[effName(cfg.Components.Splitter, d.Splitter)](cfg.Options.Splitter)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("splitter: %w", err)
	}
	o, err := registry.Orderer[effName(cfg.Components.Orderer, d.Orderer)](cfg.Options.Orderer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("orderer: %w", err)
	}
	a, err := registry.Assembler[effName(cfg.Components.Assembler, d.Assembler)](cfg.Options.Assembler)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("assembler: %w", err)
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Writer)](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer: %w", err)
	}

	comp := pipeline.Components{Reader: r, Splitter: s, Orderer: o, Assembler: a, Writer: w}
	set := pipeline.Settings{
		Inputs:      cloneStrings(cfg.Inputs),
		Concurrency: cfg.Concurrency,
		SortMode:    SortModeOf(cfg),
	}
	return comp, set, nil
}

// SortModeOf 从 orderer 选项中读取排序模式（用于回显）；缺省 Mixed。
func SortModeOf(cfg Config) string {
	var o struct {
		SortMode string `json:"sort_mode"`
	}
	if len(cfg.Options.Orderer) > 0 {
		_ = json.Unmarshal(cfg.Options.Orderer, &o)
	}
	m, err := fix.ParseSortMode(o.SortMode)
	if err != nil {
		return o.SortMode
	}
	return string(m)
}

// PatchOption 在原样 JSON 对象上设置单个键（用于将 CLI 旗标叠加到组件选项）。
// raw 为空时视为 {}；raw 不是 JSON 对象时返回错误。
func PatchOption(raw json.RawMessage, key string, value any) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("patch %s: %w", key, err)
		}
		if m == nil {
			m = map[string]json.RawMessage{}
		}
	}
	v, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", key, err)
	}
	m[key] = v
	return json.Marshal(m)
}

// EffectiveKV 汇总有效配置（调试日志用）。
func EffectiveKV(cfg Config) map[string]string {
	d := Defaults().Components
	return map[string]string{
		"inputs_count": fmt.Sprintf("%d", len(cfg.Inputs)),
		"concurrency":  fmt.Sprintf("%d", cfg.Concurrency),
		"reader":       effName(cfg.Components.Reader, d.Reader),
		"splitter":     effName(cfg.Components.Splitter, d.Splitter),
		"orderer":      effName(cfg.Components.Orderer, d.Orderer),
		"assembler":    effName(cfg.Components.Assembler, d.Assembler),
		"writer":       effName(cfg.Components.Writer, d.Writer),
		"sort_mode":    SortModeOf(cfg),
		"log_level":    diag.ParseLevel(cfg.Logging.Level).String(),
	}
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
