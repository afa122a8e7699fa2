package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fixify/internal/config"
	"fixify/internal/diag"
	"fixify/internal/watch"
)

// defaultOutputDir 在未配置 output_dir 时使用。
const defaultOutputDir = "out"

type processFlags struct {
	concurrency int
	sortMode    string
	usePrimary  bool
	exclude     []string
	outputDir   string
	writer      string
	logLevel    string
	status      bool
	metricsOut  string
	watch       bool
}

func newProcessCmd() *cobra.Command {
	var f processFlags
	cmd := &cobra.Command{
		Use:   "process [roots...]",
		Short: "Cluster, reorder and filter FIX log files",
		Long: `Reads files, directories (.txt .fix .log) or STDIN ("-"), groups records into
request clusters (35=D,G,F,J,AK,AU), orders them (Mixed: sort clusters by
90052 or 52; Proper: reverse), drops excluded tags and writes processed_<name>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg, err = applyProcessFlags(cmd, cfg, f, args)
			if err != nil {
				return err
			}
			return runProcess(cmd, cfg, f)
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.concurrency, "concurrency", 0, "files processed in parallel (overrides config)")
	fl.StringVar(&f.sortMode, "sort-mode", "", "ordering mode: Mixed or Proper")
	fl.BoolVar(&f.usePrimary, "use-primary-tag", true, "Mixed mode sorts by tag 90052 (false: tag 52)")
	fl.StringSliceVar(&f.exclude, "exclude", nil, "tags to drop from output (repeatable or comma separated)")
	fl.StringVar(&f.outputDir, "output-dir", "", "output directory (default \"out\")")
	fl.StringVar(&f.writer, "writer", "", "output writer: fs or zip")
	fl.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fl.BoolVar(&f.status, "status", true, "terminal progress on stderr")
	fl.StringVar(&f.metricsOut, "metrics-out", "", "write prometheus textfile metrics to this path")
	fl.BoolVar(&f.watch, "watch", false, "re-run when inputs change")
	return cmd
}

// applyProcessFlags 将 CLI 旗标叠加到配置（最高优先级）。
func applyProcessFlags(cmd *cobra.Command, cfg config.Config, f processFlags, roots []string) (config.Config, error) {
	var over config.Config
	if len(roots) > 0 {
		over.Inputs = roots
	}
	if f.concurrency > 0 {
		over.Concurrency = f.concurrency
	}
	over.Logging.Level = f.logLevel
	over.Metrics.Textfile = f.metricsOut
	over.Components.Writer = f.writer
	cfg = config.Merge(cfg, over)

	var err error
	patch := func(dst *json.RawMessage, key string, v any) {
		if err != nil {
			return
		}
		var out json.RawMessage
		if out, err = config.PatchOption(*dst, key, v); err == nil {
			*dst = out
		}
	}
	if f.sortMode != "" {
		patch(&cfg.Options.Orderer, "sort_mode", f.sortMode)
	}
	if cmd.Flags().Changed("use-primary-tag") {
		patch(&cfg.Options.Orderer, "use_primary_tag", f.usePrimary)
	}
	if len(f.exclude) > 0 {
		patch(&cfg.Options.Assembler, "disallowed_tags", trimAll(f.exclude))
	}
	switch {
	case f.outputDir != "":
		patch(&cfg.Options.Writer, "output_dir", f.outputDir)
	case outputDirOf(cfg) == "":
		patch(&cfg.Options.Writer, "output_dir", defaultOutputDir)
	}
	if err != nil {
		return cfg, configErr("options: %w", err)
	}
	return cfg, nil
}

func runProcess(cmd *cobra.Command, cfg config.Config, f processFlags) error {
	start := time.Now()
	corrID := genCorrID()
	if err := config.Validate(cfg); err != nil {
		return configErr("%w", err)
	}
	if f.watch && hasDash(cfg.Inputs) {
		return configErr("--watch cannot be used with STDIN")
	}
	logger := diag.NewLogger(corrID, cfg.Logging.Level, cfg.Logging.Dir)
	defer logger.Close()
	logger.DebugStart("config", "effective", "", config.EffectiveKV(cfg))

	if err := preflightCheckOutputDir(cfg); err != nil {
		logger.Error("pipeline", string(diag.Classify(err)), "preflight failed", &start)
		return configErr("output directory not writable: %w", err)
	}
	// 首次装配同时完成选项的严格校验
	if _, _, err := config.Assemble(cfg); err != nil {
		logger.Error("pipeline", string(diag.Classify(err)), "assemble failed", &start)
		return configErr("assemble: %w", err)
	}

	term := diag.NewTerminal(cmd.ErrOrStderr(), f.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := runOnce(ctx, cfg, logger)
	if f.watch {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "run failed: %v\n", err)
		}
		err = watchLoop(ctx, cfg, logger)
	}
	if path := cfg.Metrics.Textfile; path != "" {
		if merr := diag.WriteMetrics(path); merr != nil {
			logger.ErrorWithKV("metrics", string(diag.Classify(merr)), "write textfile failed", nil, "", map[string]string{"err": merr.Error()})
		}
	}
	if err != nil {
		return runtimeErr(err)
	}
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start).Milliseconds())
	return nil
}

// runOnce 每次运行重新装配组件（zip 归档等 Writer 为一次性实例）。
func runOnce(ctx context.Context, cfg config.Config, logger *diag.Logger) error {
	start := time.Now()
	comp, set, err := config.Assemble(cfg)
	if err != nil {
		return err
	}
	if _, err := pipelineRun(ctx, comp, set, logger); err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, "first error", &start)
		diag.IncOp("pipeline", "error", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		return err
	}
	return nil
}

func watchLoop(ctx context.Context, cfg config.Config, logger *diag.Logger) error {
	comp, _, err := config.Assemble(cfg)
	if err != nil {
		return err
	}
	outAbs, _ := filepath.Abs(outputDirOf(cfg))
	accept := func(p string) bool {
		if abs, err := filepath.Abs(p); err == nil && outAbs != "" && strings.HasPrefix(abs, outAbs+string(filepath.Separator)) {
			return false
		}
		if a, ok := comp.Reader.(interface{ Accepts(string) bool }); ok {
			return a.Accepts(p)
		}
		return true
	}
	return watch.Watch(ctx, watch.Options{Roots: cfg.Inputs, Accept: accept, Logger: logger},
		func(ctx context.Context, _ []string) error { return runOnce(ctx, cfg, logger) })
}

func hasDash(ss []string) bool {
	for _, s := range ss {
		if strings.TrimSpace(s) == "-" {
			return true
		}
	}
	return false
}

func trimAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// outputDirOf 读取 writer 选项中的 output_dir。
func outputDirOf(cfg config.Config) string {
	var w struct {
		OutputDir string `json:"output_dir"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &w)
	}
	return strings.TrimSpace(w.OutputDir)
}

// preflightCheckOutputDir 启动前检查输出目录可写性。
// 目录已存在：尝试创建并删除临时文件；不存在：检查父目录可写。
func preflightCheckOutputDir(cfg config.Config) error {
	dir := outputDirOf(cfg)
	if dir == "" {
		// 未指定时无法可靠检查，让装配阶段按实现自行报错
		return nil
	}
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	} else if err == nil {
		return fmt.Errorf("path exists but is not a directory: %s", dir)
	} else if !os.IsNotExist(err) {
		return err
	}
	parent := filepath.Dir(filepath.Clean(dir))
	pst, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("parent is not a directory: %s", parent)
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}
