package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fixify/internal/config"
	"fixify/internal/pipeline"
)

var pipelineRun = pipeline.Run

// 退出码：0 成功；1 运行期失败；3 配置/用法错误。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

// exitError 携带退出码；未包装的错误按运行期失败处理。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configErr(format string, a ...any) error {
	return &exitError{code: exitConfig, err: fmt.Errorf(format, a...)}
}

func runtimeErr(err error) error { return &exitError{code: exitRuntime, err: err} }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run 构建命令树并执行；每次调用使用新的旗标状态。
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if !errors.Is(ee.err, context.Canceled) {
			fmt.Fprintf(stderr, "error: %v\n", ee.err)
		}
		return ee.code
	}
	// cobra 自身的用法错误（未知旗标、参数个数等）
	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitConfig
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "fixify",
		Short: "FIX log processor and comparator",
		Long: `fixify normalizes FIX session logs (SOH or ^A delimited), groups them into
request clusters, reorders and filters them, and compares messages or whole files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）。
			_ = config.LoadDotEnv(".env")
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().String("config", "", "config file (JSON or YAML); defaults to ./config.json when present")

	root.AddCommand(newProcessCmd())
	root.AddCommand(newCompareCmd())
	root.AddCommand(newExplainCmd())
	root.AddCommand(newInitConfigCmd())
	return root
}

// genCorrID 为一次运行生成关联 ID。
func genCorrID() string { return uuid.NewString() }

// loadConfig 按优先级合并：Defaults → 配置文件或 FIXIFY_CONFIG_JSON → ENV。
// CLI 覆盖由各子命令在其后叠加。
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	cfg := config.Defaults()
	var (
		base config.Config
		err  error
		src  bool
	)
	switch raw := os.Getenv(config.EnvPrefix + "CONFIG_JSON"); {
	case raw != "":
		base, err = config.LoadJSON("", []byte(raw))
		src = true
	case path != "":
		base, err = config.LoadFile(path)
		src = true
	}
	if err != nil {
		return cfg, configErr("config: %w", err)
	}
	if src {
		cfg = config.Merge(cfg, base)
	}
	over, err := config.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, configErr("%w", err)
	}
	return config.Merge(cfg, over), nil
}
