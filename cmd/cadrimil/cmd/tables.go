// Package cmd - rate table commands
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/factory"
)

func (a *app) tablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Inspect the per-diem rate table",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print groups, localities, rates and legal references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.loadTable(cmd.Context())
			if err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(), table)
			return nil
		},
	}

	export := &cobra.Command{
		Use:   "export <file>",
		Short: "Write the rate table as JSON or YAML (by extension, - for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.loadTable(cmd.Context())
			if err != nil {
				return err
			}
			data, err := encodeTable(table, args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), args[0], data)
		},
	}

	cmd.AddCommand(show, export)
	return cmd
}

func (a *app) loadTable(ctx context.Context) (diaria.RateTable, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return diaria.RateTable{}, err
	}
	defer st.Close()
	return a.rateTable(ctx, st.Cache)
}

func encodeTable(table diaria.RateTable, path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(factory.ToDocument(table))
	default:
		return factory.MarshalTable(table)
	}
}

// writeOutput writes data to path, or to out when path is "-".
func writeOutput(out io.Writer, path string, data []byte) error {
	if path == "-" {
		_, err := out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(out, "Wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func printTable(out io.Writer, table diaria.RateTable) {
	localities := table.LocalityKeys()

	fmt.Fprintln(out, "Grupos:")
	for _, g := range table.GroupKeys() {
		fmt.Fprintf(out, "  %s  %s\n", g, table.GroupLabel(g))
	}
	fmt.Fprintln(out, "\nLocalidades:")
	for _, l := range localities {
		fmt.Fprintf(out, "  %s  %s\n", l, table.LocalityLabel(l))
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"Grupo"}
	for _, l := range localities {
		header = append(header, string(l))
	}
	fmt.Fprintln(w, strings.Join(header, "\t")+"\t")
	for _, g := range table.GroupKeys() {
		row := []string{string(g)}
		for _, l := range localities {
			row = append(row, diaria.FormatBRL(diaria.UnitRate(g, l, table)))
		}
		fmt.Fprintln(w, strings.Join(row, "\t")+"\t")
	}
	w.Flush()

	fmt.Fprintf(out, "\n%s: R$ %s\n", allowanceTitle(table), diaria.FormatBRL(table.Allowance.Value))

	if len(table.Decrees) > 0 {
		fmt.Fprintln(out, "\nLegislação:")
		for _, d := range table.Decrees {
			fmt.Fprintf(out, "  %s, de %s\n", d.Decree, d.Date)
		}
	}
}

func allowanceTitle(table diaria.RateTable) string {
	if table.Allowance.Title != "" {
		return table.Allowance.Title
	}
	return "AED"
}
