package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fixify/internal/config"
)

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [dir|-]",
		Short: "Write config.json and .env templates (never overwrites); \"-\" prints config to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "-" {
				if err := encodeConfig(cmd.OutOrStdout(), config.DefaultTemplateConfig()); err != nil {
					return runtimeErr(fmt.Errorf("init-config: %w", err))
				}
				return nil
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return configErr("init-config: %w", err)
			}
			cfgPath := filepath.Join(dir, "config.json")
			if err := writeConfig(cfgPath, config.DefaultTemplateConfig()); err != nil {
				return configErr("init-config: %w", err)
			}
			envPath := filepath.Join(dir, ".env")
			if err := writeDotEnv(envPath); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "note: .env not written: %v\n", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfgPath)
			return nil
		},
	}
}

// writeConfig 写出配置；已存在的文件不覆盖。
func writeConfig(path string, c config.Config) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return encodeConfig(f, c)
}

func encodeConfig(w io.Writer, c config.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// writeDotEnv 生成 .env 模板；已存在时跳过。
func writeDotEnv(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(config.DotEnvTemplate())
	return err
}
