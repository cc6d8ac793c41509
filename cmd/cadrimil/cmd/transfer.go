// Package cmd - mission export and import
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cadrimil/engine/diaria"
)

func (a *app) exportCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "export <id> <file>",
		Short: "Write a saved mission as a JSON file (- for stdout)",
		Long: `Write a saved mission in the file format accepted by "import".

With --all, every saved mission is written as a JSON array and only the
file argument is given:
  cadrimil export --all missoes.json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if all {
				missions, err := st.Missions.List(ctx)
				if err != nil {
					return err
				}
				data, err := diaria.MarshalMissions(missions)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), args[0], data)
			}

			m, err := st.Missions.Get(ctx, diaria.MissionID(args[0]))
			if err != nil {
				return err
			}
			data, err := diaria.MarshalMission(m)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), args[1], data)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "export every saved mission")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Read an exported mission and recompute its total",
		Long: `Read a mission file written by "export" (or by the mobile app).

The total stored in the file is ignored and recomputed against the current
rate table. With --save the mission is stored under a new id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			imported, err := diaria.UnmarshalMission(data)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
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
			s.Import(imported)
			for _, p := range s.Periods() {
				if err := diaria.ValidateAgainst(p, table); err != nil {
					a.log.Warn("imported period does not match the rate table",
						zap.String("period", string(p.ID)), zap.Error(err))
				}
			}

			var m diaria.Mission
			if save {
				m, err = s.Save(ctx, st.Missions)
			} else {
				m, err = s.Snapshot()
			}
			if errors.Is(err, diaria.ErrNoPeriods) {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printMission(out, m, table)
			if save {
				a.log.Info("mission imported", zap.String("id", string(m.ID)))
				fmt.Fprintf(out, "\nSaved as %s\n", m.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "save the imported mission")
	return cmd
}
