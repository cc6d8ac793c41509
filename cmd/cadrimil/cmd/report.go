// Package cmd - report command
package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/report"
)

func (a *app) reportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Render a saved mission as HTML, PDF or XLSX",
		Long: `Render a saved mission report.

The format defaults to report.default_format from the config file. Without
-o the file is named after the mission.

Examples:
  cadrimil report 7f1c... --format pdf -o missao.pdf
  cadrimil report 7f1c... --format xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = a.cfg.Report.DefaultFormat
			}
			renderer, err := report.ForFormat(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			m, err := st.Missions.Get(ctx, diaria.MissionID(args[0]))
			if err != nil {
				return err
			}
			table, err := a.rateTable(ctx, st.Cache)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := renderer.Render(&buf, m, table); err != nil {
				return fmt.Errorf("failed to render report: %w", err)
			}

			if output == "" {
				output = report.FileName(m.Name, renderer.Extension())
			}
			a.log.Debug("report rendered", zap.String("mission", args[0]), zap.String("format", renderer.Extension()))
			return writeOutput(cmd.OutOrStdout(), output, buf.Bytes())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "report format (html, pdf, xlsx)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (- for stdout)")
	return cmd
}
