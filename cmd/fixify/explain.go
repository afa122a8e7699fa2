package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"fixify/internal/report"
	"fixify/pkg/fix"
)

func newExplainCmd() *cobra.Command {
	var (
		format string
		color  bool
	)
	cmd := &cobra.Command{
		Use:   "explain <message|->",
		Short: "Annotate each tag of a FIX message with its name and value meaning",
		Long:  `Uses the built-in tag dictionary; "-" reads messages from STDIN, one per line.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return configErr("%w", err)
			}
			text := args[0]
			if text == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return runtimeErr(err)
				}
				text = string(b)
			}
			recs := fix.ParseText(text)
			if len(recs) == 0 {
				return configErr("explain: empty message")
			}
			r := report.Renderer{Format: f, Color: color}
			out := cmd.OutOrStdout()
			for i, rec := range recs {
				if i > 0 && f == report.FormatText {
					fmt.Fprintln(out)
				}
				if len(recs) > 1 && f == report.FormatText {
					fmt.Fprintf(out, "line %d: %s\n", rec.Line(), strings.TrimSpace(rec.Raw()))
				}
				if err := r.Explain(out, rec); err != nil {
					return runtimeErr(err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&color, "color", false, "colorize text output")
	return cmd
}
