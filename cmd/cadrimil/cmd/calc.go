// Package cmd - calc command
package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cadrimil/engine/diaria"
)

const displayDate = "02/01/2006"

func (a *app) calcCmd() *cobra.Command {
	var (
		periods   []string
		allowance bool
		name      string
		save      bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Calculate the per-diem total for one or more periods",
		Long: `Calculate the per-diem total of a mission.

Each --period is GROUP:LOCALITY:START:END:HEADCOUNT with an optional
":full" suffix to count the last day as a full day. Dates are YYYY-MM-DD.

Examples:
  cadrimil calc --period E:l4:2025-05-05:2025-05-14:12 --period D:l3:2025-05-05:2025-05-14:2 --aed
  cadrimil calc --period B:l1:2025-06-02:2025-06-04:1:full --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(periods) == 0 {
				return fmt.Errorf("at least one --period is required")
			}
			parsed := make([]diaria.Period, len(periods))
			for i, raw := range periods {
				p, err := parsePeriod(raw)
				if err != nil {
					return fmt.Errorf("period %d: %w", i+1, err)
				}
				parsed[i] = p
			}
			return a.runCalc(cmd.Context(), cmd.OutOrStdout(), calcInput{
				name:      name,
				allowance: allowance,
				periods:   parsed,
				save:      save,
				asJSON:    asJSON,
			})
		},
	}

	cmd.Flags().StringArrayVarP(&periods, "period", "p", nil, "period as GROUP:LOCALITY:START:END:HEADCOUNT[:full] (repeatable)")
	cmd.Flags().BoolVar(&allowance, "aed", false, "include the boarding/disembarking allowance")
	cmd.Flags().StringVarP(&name, "name", "n", "", "mission name")
	cmd.Flags().BoolVar(&save, "save", false, "save the mission")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the mission in export format")
	return cmd
}

type calcInput struct {
	name      string
	allowance bool
	periods   []diaria.Period
	save      bool
	asJSON    bool
}

func (a *app) runCalc(ctx context.Context, out io.Writer, in calcInput) error {
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	table, err := a.rateTable(ctx, st.Cache)
	if err != nil {
		return err
	}

	s := a.newSession(table)
	s.SetName(in.name)
	s.SetIncludeAllowance(in.allowance)
	if err := s.SetPeriods(in.periods); err != nil {
		return err
	}

	var m diaria.Mission
	if in.save {
		m, err = s.Save(ctx, st.Missions)
	} else {
		m, err = s.Snapshot()
	}
	if err != nil {
		return err
	}
	if in.save {
		a.log.Info("mission saved", zap.String("id", string(m.ID)))
	}

	if in.asJSON {
		data, err := diaria.MarshalMission(m)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	printMission(out, m, table)
	if in.save {
		fmt.Fprintf(out, "\nSaved as %s\n", m.ID)
	}
	return nil
}

// parsePeriod reads GROUP:LOCALITY:START:END:HEADCOUNT[:full].
func parsePeriod(raw string) (diaria.Period, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 5 && len(parts) != 6 {
		return diaria.Period{}, fmt.Errorf("invalid period %q (use GROUP:LOCALITY:START:END:HEADCOUNT[:full])", raw)
	}

	start, err := diaria.ParseDate(parts[2])
	if err != nil {
		return diaria.Period{}, err
	}
	end, err := diaria.ParseDate(parts[3])
	if err != nil {
		return diaria.Period{}, err
	}
	headcount, err := strconv.Atoi(strings.TrimSpace(parts[4]))
	if err != nil {
		return diaria.Period{}, fmt.Errorf("invalid headcount %q", parts[4])
	}

	p := diaria.Period{
		Group:     diaria.GroupKey(strings.TrimSpace(parts[0])),
		Locality:  diaria.LocalityKey(strings.TrimSpace(parts[1])),
		Start:     start,
		End:       end,
		Headcount: headcount,
	}
	if len(parts) == 6 {
		if !strings.EqualFold(parts[5], "full") {
			return diaria.Period{}, fmt.Errorf("unknown period option %q (only \"full\")", parts[5])
		}
		p.CountLastDayFull = true
	}
	return p, nil
}

// printMission writes the period lines and totals of m computed against
// table.
func printMission(out io.Writer, m diaria.Mission, table diaria.RateTable) {
	b := diaria.Breakdown(m.Periods, m.IncludeAllowance, table)

	fmt.Fprintf(out, "%s\n", m.Name)
	if m.ID != "" {
		fmt.Fprintf(out, "ID: %s\n", m.ID)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "#\tGrupo\tLocalidade\tInício\tFim\tEfetivo\tDias\tValor unit.\tTotal\t")
	for _, l := range b.Lines {
		last := ""
		if l.Period.CountLastDayFull {
			last = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s%s\t%d\t%s\t%s\t%s\t\n",
			l.Index,
			l.Period.Group,
			l.Period.Locality,
			l.Period.Start.Format(displayDate),
			l.Period.End.Format(displayDate),
			last,
			l.Period.Headcount,
			diaria.FormatDays(l.Days),
			diaria.FormatBRL(l.UnitRate),
			diaria.FormatBRL(l.Cost),
		)
	}
	w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Subtotal: R$ %s\n", diaria.FormatBRL(b.Subtotal))
	if b.IncludeAllowance {
		fmt.Fprintf(out, "AED (%d x R$ %s): R$ %s\n",
			b.TotalHeadcount, diaria.FormatBRL(b.AllowanceRate), diaria.FormatBRL(b.AllowanceTotal))
	}
	fmt.Fprintf(out, "Total: R$ %s\n", diaria.FormatBRL(b.Total))
}
