package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixify/pkg/contract"
	wzip "fixify/plugins/writer/ziparchive"
)

// UT-CFG-01: 解析完整 config.json
func TestLoadJSON(t *testing.T) {
	cfg, err := LoadJSON("../../testdata/config/basic.json", nil)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Components.Writer != "zip" || cfg.Concurrency != 2 {
		t.Fatalf("字段映射错误: %+v", cfg)
	}
	if len(cfg.Inputs) != 1 || cfg.Components.Reader != "fs" {
		t.Fatalf("字段映射错误: %+v", cfg)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("校验失败: %v", err)
	}
}

// YAML 与 JSON 解析结果一致（原样 JSON 子树按语义比较）
func TestLoadFileYAMLMatchesJSON(t *testing.T) {
	fromJSON, err := LoadFile("../../testdata/config/basic.json")
	require.NoError(t, err)
	fromYAML, err := LoadFile("../../testdata/config/basic.yaml")
	require.NoError(t, err)

	rawEq := cmp.Comparer(func(a, b json.RawMessage) bool {
		var x, y any
		if len(a) == 0 || len(b) == 0 {
			return len(a) == len(b)
		}
		if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
			return false
		}
		return cmp.Equal(x, y)
	})
	if diff := cmp.Diff(fromJSON, fromYAML, rawEq); diff != "" {
		t.Fatalf("yaml/json mismatch (-json +yaml):\n%s", diff)
	}
}

func TestLoadYAMLUnknownField(t *testing.T) {
	_, err := LoadYAML([]byte("inputs: [a]\nbogus: 1\n"))
	require.Error(t, err)
	_, err = LoadYAML([]byte("inputs: [a\n"))
	require.Error(t, err)
	cfg, err := LoadYAML(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Inputs)
}

// UT-CFG-02: ENV 覆盖部分字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"FIXIFY_INPUTS=a,b",
		"FIXIFY_CONCURRENCY=3",
		"FIXIFY_LOG_LEVEL=warn",
		"FIXIFY_COMPONENTS_WRITER=zip",
		`FIXIFY_OPTIONS_ORDERER_JSON={"sort_mode":"Proper"}`,
		"FIXIFY_COMPARE_KEY_TAGS=11, 37",
		"FIXIFY_COMPARE_MODE=",
		"OTHER_CONCURRENCY=9",
	}
	over, err := EnvOverlay(env)
	if err != nil {
		t.Fatalf("EnvOverlay 错误: %v", err)
	}
	if over.Concurrency != 3 || len(over.Inputs) != 2 || over.Logging.Level != "warn" {
		t.Fatalf("覆盖结果不正确: %+v", over)
	}
	assert.Equal(t, "zip", over.Components.Writer)
	assert.JSONEq(t, `{"sort_mode":"Proper"}`, string(over.Options.Orderer))
	assert.Equal(t, []string{"11", "37"}, over.Compare.KeyTags)
	assert.Empty(t, over.Compare.Mode)
}

func TestEnvOverlayErrors(t *testing.T) {
	_, err := EnvOverlay([]string{"FIXIFY_CONCURRENCY=many"})
	require.Error(t, err)
	_, err = EnvOverlay([]string{"FIXIFY_OPTIONS_WRITER_JSON={bad"})
	require.Error(t, err)
}

// UT-CFG-03: 含非法字段
func TestLoadJSONUnknown(t *testing.T) {
	raw := []byte(`{"unknown":1}`)
	if _, err := LoadJSON("", raw); err == nil {
		t.Fatalf("应当返回错误")
	}
	if _, err := LoadJSON("", nil); err == nil {
		t.Fatalf("无来源应当返回错误")
	}
}

// 补充覆盖: splitComma 与 atoi
func TestSplitCommaAtoi(t *testing.T) {
	parts := splitComma("a, b , ,c")
	if len(parts) != 3 || parts[1] != "b" {
		t.Fatalf("splitComma 结果错误: %v", parts)
	}
	if v, err := atoi("10"); err != nil || v != 10 {
		t.Fatalf("atoi 失败: %v %d", err, v)
	}
}

// 补充覆盖: Defaults 与 cloneRaw
func TestDefaultsClone(t *testing.T) {
	d := Defaults()
	if d.Components.Reader != "fs" || d.Components.Orderer != "cluster" {
		t.Fatalf("默认组件错误: %+v", d.Components)
	}
	if d.Compare.Mode != "values" || len(d.Compare.KeyTags) != 3 {
		t.Fatalf("默认比较参数错误: %+v", d.Compare)
	}
	src := []byte("abc")
	dst := cloneRaw(src)
	src[0] = 'x'
	if string(dst) != "abc" {
		t.Fatalf("cloneRaw 未复制")
	}
}

func TestMergePrecedence(t *testing.T) {
	base := Defaults()
	file := Config{Concurrency: 2, Components: Components{Writer: "zip"}, Options: Options{Writer: json.RawMessage(`{"output_dir":"a"}`)}}
	env := Config{Logging: Logging{Level: "debug"}, Options: Options{Writer: json.RawMessage(`{"output_dir":"b"}`)}}
	cli := Config{Concurrency: 8, Inputs: []string{"x"}}

	got := Merge(Merge(Merge(base, file), env), cli)
	assert.Equal(t, 8, got.Concurrency)
	assert.Equal(t, "zip", got.Components.Writer)
	assert.Equal(t, "fixlines", got.Components.Splitter)
	assert.Equal(t, "debug", got.Logging.Level)
	assert.Equal(t, "logs", got.Logging.Dir)
	assert.JSONEq(t, `{"output_dir":"b"}`, string(got.Options.Writer))
	assert.Equal(t, []string{"x"}, got.Inputs)
}

// 补充覆盖: Validate 错误分支
func TestValidateErrors(t *testing.T) {
	if err := Validate(Config{}); err == nil {
		t.Fatal("空配置应失败")
	}
	mutate := map[string]func(*Config){
		"dash mix":       func(c *Config) { c.Inputs = []string{"-", "a"} },
		"empty input":    func(c *Config) { c.Inputs = []string{" "} },
		"concurrency":    func(c *Config) { c.Concurrency = 0 },
		"level":          func(c *Config) { c.Logging.Level = "loud" },
		"compare mode":   func(c *Config) { c.Compare.Mode = "fuzzy" },
		"compare format": func(c *Config) { c.Compare.Format = "xml" },
		"empty key tag":  func(c *Config) { c.Compare.KeyTags = []string{"11", ""} },
		"writer":         func(c *Config) { c.Components.Writer = "s3" },
		"orderer":        func(c *Config) { c.Components.Orderer = "random" },
	}
	for name, fn := range mutate {
		cfg := DefaultTemplateConfig()
		fn(&cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: 应失败", name)
		}
	}
	if err := Validate(DefaultTemplateConfig()); err != nil {
		t.Fatalf("模板应通过校验: %v", err)
	}
}

func TestAssembleTemplate(t *testing.T) {
	cfg := DefaultTemplateConfig()
	cfg.Options.Writer = json.RawMessage(`{"output_dir":"` + filepath.ToSlash(t.TempDir()) + `"}`)
	comp, set, err := Assemble(cfg)
	require.NoError(t, err)
	assert.NotNil(t, comp.Reader)
	assert.NotNil(t, comp.Splitter)
	assert.NotNil(t, comp.Orderer)
	assert.NotNil(t, comp.Assembler)
	assert.NotNil(t, comp.Writer)
	assert.Equal(t, []string{"-"}, set.Inputs)
	assert.Equal(t, "Mixed", set.SortMode)
}

func TestAssembleZipWriter(t *testing.T) {
	cfg := Defaults()
	cfg.Inputs = []string{"a.fix"}
	cfg.Components.Writer = "zip"
	cfg.Options.Writer = json.RawMessage(`{"output_dir":"` + filepath.ToSlash(t.TempDir()) + `"}`)
	cfg.Options.Orderer = json.RawMessage(`{"sort_mode":"proper"}`)
	comp, set, err := Assemble(cfg)
	require.NoError(t, err)
	assert.IsType(t, &wzip.Archive{}, comp.Writer)
	assert.Equal(t, "Proper", set.SortMode)
}

func TestAssembleBadOptions(t *testing.T) {
	cfg := DefaultTemplateConfig()
	cfg.Options.Orderer = json.RawMessage(`{"sort_mode":"Sideways"}`)
	_, _, err := Assemble(cfg)
	require.ErrorIs(t, err, contract.ErrInvalidInput)

	cfg = DefaultTemplateConfig()
	cfg.Options.Assembler = json.RawMessage(`{"nope":true}`)
	_, _, err = Assemble(cfg)
	require.ErrorIs(t, err, contract.ErrInvalidInput)
}

func TestPatchOption(t *testing.T) {
	out, err := PatchOption(nil, "sort_mode", "Proper")
	require.NoError(t, err)
	assert.JSONEq(t, `{"sort_mode":"Proper"}`, string(out))

	out, err = PatchOption(json.RawMessage(`{"sort_mode":"Mixed","primary_tag":"52"}`), "use_primary_tag", false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sort_mode":"Mixed","primary_tag":"52","use_primary_tag":false}`, string(out))

	_, err = PatchOption(json.RawMessage(`[1,2]`), "k", 1)
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nexport FIXIFY_T_A=\"x\\ty\"\nFIXIFY_T_B='raw\\n'\nFIXIFY_T_C=keep\nnoequals\n"
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	t.Setenv("FIXIFY_T_C", "preset")
	t.Setenv("FIXIFY_T_A", "")
	os.Unsetenv("FIXIFY_T_A")
	t.Setenv("FIXIFY_T_B", "")
	os.Unsetenv("FIXIFY_T_B")

	require.NoError(t, LoadDotEnv(p))
	assert.Equal(t, "x\ty", os.Getenv("FIXIFY_T_A"))
	assert.Equal(t, `raw\n`, os.Getenv("FIXIFY_T_B"))
	assert.Equal(t, "preset", os.Getenv("FIXIFY_T_C"))
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing")))
}

func TestDotEnvTemplateKeysParse(t *testing.T) {
	tpl := DotEnvTemplate()
	assert.Contains(t, tpl, "FIXIFY_OPTIONS_ORDERER_JSON=")
	// 模板中的空值不应产生任何覆盖
	var env []string
	for _, line := range strings.Split(tpl, "\n") {
		if line != "" && line[0] != '#' {
			env = append(env, line)
		}
	}
	over, err := EnvOverlay(env)
	require.NoError(t, err)
	assert.Equal(t, Config{}, over)
}
