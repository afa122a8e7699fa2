package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "fixify/internal/config"
	"fixify/internal/diag"
	"fixify/internal/pipeline"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := run(args, &out, &errb)
	return code, out.String(), errb.String()
}

func setConfigJSON(t *testing.T, cfg cfgpkg.Config) {
	t.Helper()
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	t.Setenv("FIXIFY_CONFIG_JSON", string(b))
}

func stubPipeline(t *testing.T, fn func(set pipeline.Settings) error) *bool {
	t.Helper()
	called := false
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (pipeline.Stats, error) {
		called = true
		return pipeline.Stats{}, fn(set)
	}
	t.Cleanup(func() { pipelineRun = orig })
	return &called
}

func TestHasDash(t *testing.T) {
	if !hasDash([]string{"a", "-"}) {
		t.Errorf("expected true")
	}
	if hasDash([]string{"a", "b"}) {
		t.Errorf("expected false")
	}
}

func TestRunInitConfig(t *testing.T) {
	chdir(t, t.TempDir())
	outDir := filepath.Join("cfg", "out")
	code, stdout, _ := runCLI(t, "init-config", outDir)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "config.json")

	cfg, err := cfgpkg.LoadJSON(filepath.Join(outDir, "config.json"), nil)
	require.NoError(t, err)
	require.NoError(t, cfgpkg.Validate(cfg))
	env, err := os.ReadFile(filepath.Join(outDir, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(env), "FIXIFY_CONFIG_JSON=")

	// 已存在不覆盖
	code, _, stderr := runCLI(t, "init-config", outDir)
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "exists")
}

func TestRunInitConfigDefaultDir(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	code, _, _ := runCLI(t, "init-config")
	require.Equal(t, exitOK, code)
	_, err := os.Stat(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
}

func TestRunInitConfigStdout(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	code, stdout, _ := runCLI(t, "init-config", "-")
	require.Equal(t, exitOK, code)

	cfg, err := cfgpkg.LoadJSON("", []byte(stdout))
	require.NoError(t, err)
	require.NoError(t, cfgpkg.Validate(cfg))
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "stdout mode must not create files")
}

func TestProcessSuccessWithOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	cfg := cfgpkg.DefaultTemplateConfig()
	setConfigJSON(t, cfg)

	called := stubPipeline(t, func(set pipeline.Settings) error {
		assert.Equal(t, 3, set.Concurrency)
		assert.Equal(t, "Proper", set.SortMode)
		assert.Equal(t, []string{"-"}, set.Inputs)
		return nil
	})
	code, _, stderr := runCLI(t, "process", "--concurrency", "3", "--sort-mode", "proper", "--status=false", "-")
	require.Equal(t, exitOK, code, stderr)
	assert.True(t, *called)
}

func TestProcessEndToEnd(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	in := filepath.Join(dir, "logs-in")
	require.NoError(t, os.Mkdir(in, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.fix"), []byte("35=D\x0152=2\x0110=1\x01\n35=8\x0110=2\x01\n35=D\x0152=1\x0110=3\x01\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "readme.md"), []byte("skip me"), 0o644))

	code, _, stderr := runCLI(t, "process", "--status=false", "--sort-mode", "Proper", "--exclude", "10", "--output-dir", "result", in)
	require.Equal(t, exitOK, code, stderr)
	got, err := os.ReadFile(filepath.Join(dir, "result", "processed_a.fix"))
	require.NoError(t, err)
	// 行尾 SOH 归一化为 '|' 后保留
	assert.Equal(t, "35=D|52=1|\n35=8|\n35=D|52=2|", string(got))
	_, err = os.Stat(filepath.Join(dir, "result", "processed_readme.md"))
	assert.True(t, os.IsNotExist(err))

	code, _, stderr = runCLI(t, "process", "--status=false", "--use-primary-tag=false", "--exclude", "10", "--output-dir", "mixed", in)
	require.Equal(t, exitOK, code, stderr)
	got, err = os.ReadFile(filepath.Join(dir, "mixed", "processed_a.fix"))
	require.NoError(t, err)
	assert.Equal(t, "35=D|52=1|\n35=D|52=2|\n35=8|", string(got))
}

func TestProcessZipAndMetrics(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	for _, n := range []string{"b.txt", "a.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("35=D|11="+n), 0o644))
	}
	code, _, stderr := runCLI(t, "process", "--status=false", "--writer", "zip", "--output-dir", "out",
		"--metrics-out", filepath.Join(dir, "fixify.prom"), filepath.Join(dir, "b.txt"), filepath.Join(dir, "a.log"))
	require.Equal(t, exitOK, code, stderr)

	zr, err := zip.OpenReader(filepath.Join(dir, "out", "processed_FIX_files.zip"))
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"processed_a.log", "processed_b.txt"}, names)

	prom, err := os.ReadFile(filepath.Join(dir, "fixify.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "fixify_op_total")
}

func TestProcessConfigErrors(t *testing.T) {
	cases := map[string]struct {
		cfg  func(*cfgpkg.Config)
		args []string
	}{
		"config file missing": {args: []string{"process", "--config", "missing.json", "-"}},
		"no inputs":           {cfg: func(c *cfgpkg.Config) { c.Inputs = nil }, args: []string{"process"}},
		"bad reader option":   {cfg: func(c *cfgpkg.Config) { c.Options.Reader = json.RawMessage(`{"unknown":1}`) }, args: []string{"process"}},
		"bad sort mode":       {args: []string{"process", "--sort-mode", "sideways"}},
		"watch stdin":         {args: []string{"process", "--watch", "-"}},
		"unknown flag":        {args: []string{"process", "--bogus"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			chdir(t, t.TempDir())
			if name != "config file missing" {
				cfg := cfgpkg.DefaultTemplateConfig()
				if tc.cfg != nil {
					tc.cfg(&cfg)
				}
				setConfigJSON(t, cfg)
			}
			called := stubPipeline(t, func(pipeline.Settings) error { return nil })
			code, _, _ := runCLI(t, append(tc.args, "--status=false")...)
			assert.Equal(t, exitConfig, code)
			assert.False(t, *called)
		})
	}
}

func TestProcessPipelineError(t *testing.T) {
	chdir(t, t.TempDir())
	setConfigJSON(t, cfgpkg.DefaultTemplateConfig())
	stubPipeline(t, func(pipeline.Settings) error { return errors.New("boom") })
	code, _, stderr := runCLI(t, "process", "--status=false")
	assert.Equal(t, exitRuntime, code)
	assert.Contains(t, stderr, "boom")
}

func TestProcessEnvOverlay(t *testing.T) {
	chdir(t, t.TempDir())
	setConfigJSON(t, cfgpkg.DefaultTemplateConfig())
	t.Setenv("FIXIFY_CONCURRENCY", "5")
	t.Setenv("FIXIFY_OPTIONS_ORDERER_JSON", `{"sort_mode":"Proper"}`)
	called := stubPipeline(t, func(set pipeline.Settings) error {
		assert.Equal(t, 5, set.Concurrency)
		assert.Equal(t, "Proper", set.SortMode)
		return nil
	})
	code, _, stderr := runCLI(t, "process", "--status=false")
	require.Equal(t, exitOK, code, stderr)
	assert.True(t, *called)
}

func TestProcessDefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Concurrency = 4
	b, _ := json.Marshal(cfg)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), b, 0o644))
	called := stubPipeline(t, func(set pipeline.Settings) error {
		assert.Equal(t, 4, set.Concurrency)
		return nil
	})
	code, _, stderr := runCLI(t, "process", "--status=false")
	require.Equal(t, exitOK, code, stderr)
	assert.True(t, *called)
}

func TestProcessYAMLConfig(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yml := "inputs: [\"-\"]\nconcurrency: 6\noptions:\n  orderer:\n    sort_mode: Proper\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixify.yaml"), []byte(yml), 0o644))
	called := stubPipeline(t, func(set pipeline.Settings) error {
		assert.Equal(t, 6, set.Concurrency)
		assert.Equal(t, "Proper", set.SortMode)
		return nil
	})
	code, _, stderr := runCLI(t, "process", "--config", "fixify.yaml", "--status=false")
	require.Equal(t, exitOK, code, stderr)
	assert.True(t, *called)
}

func TestCompareMessages(t *testing.T) {
	chdir(t, t.TempDir())
	code, out, _ := runCLI(t, "compare", "messages", "35=D|44=1|11=a", "35=D\x0144=2\x01")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "mode values")
	assert.Contains(t, out, "| mismatch")
	assert.Contains(t, out, "| —")

	code, out, _ = runCLI(t, "compare", "messages", "--mode", "tags", "--format", "json", "35=D|44=1", "35=D|44=2")
	require.Equal(t, exitOK, code)
	var d struct {
		Mode       string   `json:"mode"`
		MissingIn1 []string `json:"missingIn1"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "tags", d.Mode)
	assert.Empty(t, d.MissingIn1)

	code, _, _ = runCLI(t, "compare", "messages", "--mode", "fuzzy", "35=D", "35=D")
	assert.Equal(t, exitConfig, code)
	code, _, _ = runCLI(t, "compare", "messages", "35=D")
	assert.Equal(t, exitConfig, code)
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	f1 := filepath.Join(dir, "x1.txt")
	f2 := filepath.Join(dir, "x2.txt")
	require.NoError(t, os.WriteFile(f1, []byte("35=D|11=A|37=1\n35=D|11=B\n"), 0o644))
	require.NoError(t, os.WriteFile(f2, []byte("35=8|11=A|37=1\n35=8|11=C\n"), 0o644))

	code, out, _ := runCLI(t, "compare", "files", "--format", "json", f1, f2)
	require.Equal(t, exitOK, code)
	var d struct {
		Summary struct {
			Matched    int `json:"matched"`
			Unmatched1 int `json:"unmatched1"`
			Unmatched2 int `json:"unmatched2"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, 1, d.Summary.Matched)
	assert.Equal(t, 1, d.Summary.Unmatched1)
	assert.Equal(t, 1, d.Summary.Unmatched2)

	code, out, _ = runCLI(t, "compare", "files", "--key-tags", "35", f1, f2)
	require.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "key tags 35 | matched 0 | file 1 unmatched 2 | file 2 unmatched 2"), out)

	code, _, _ = runCLI(t, "compare", "files", f1, filepath.Join(dir, "missing.txt"))
	assert.Equal(t, exitRuntime, code)
}

func TestExplainCmd(t *testing.T) {
	chdir(t, t.TempDir())
	code, out, _ := runCLI(t, "explain", "8=FIX.4.4^A35=D^A54=2^A")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "MsgType")
	assert.Contains(t, out, "New Order Single")
	assert.Contains(t, out, "Sell")

	code, _, _ = runCLI(t, "explain", "   ")
	assert.Equal(t, exitConfig, code)
}

func TestPreflightCheckOutputDir(t *testing.T) {
	dir := t.TempDir()
	cfg := cfgpkg.Defaults()
	require.NoError(t, preflightCheckOutputDir(cfg))

	cfg.Options.Writer = json.RawMessage(`{"output_dir":"` + filepath.ToSlash(filepath.Join(dir, "new")) + `"}`)
	require.NoError(t, preflightCheckOutputDir(cfg))

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	cfg.Options.Writer = json.RawMessage(`{"output_dir":"` + filepath.ToSlash(file) + `"}`)
	require.Error(t, preflightCheckOutputDir(cfg))
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
