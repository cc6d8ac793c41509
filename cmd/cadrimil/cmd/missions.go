// Package cmd - saved mission commands
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cadrimil/engine/diaria"
)

func (a *app) missionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "missions",
		Short: "Manage saved missions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved missions, newest first, priced with the current table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			missions, err := st.Missions.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(missions) == 0 {
				fmt.Fprintln(out, "No saved missions.")
				return nil
			}

			table, err := a.rateTable(ctx, st.Cache)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNOME\tCRIADA EM\tPERÍODOS\tTOTAL")
			for _, m := range missions {
				m.Recompute(table)
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\tR$ %s\n",
					m.ID, m.Name, m.CreatedAt.Local().Format("02/01/2006 15:04"), len(m.Periods), diaria.FormatBRL(m.Total))
			}
			return w.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved mission recomputed against the current table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			printMission(cmd.OutOrStdout(), m, table)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			id := diaria.MissionID(args[0])
			if _, err := st.Missions.Get(ctx, id); err != nil {
				return err
			}
			if err := st.Missions.Delete(ctx, id); err != nil {
				return err
			}
			a.log.Info("mission deleted", zap.String("id", args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		},
	}

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved mission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !yes && !confirm(cmd.InOrStdin(), out, "This deletes every saved mission.") {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Missions.Clear(ctx); err != nil {
				return err
			}
			a.log.Info("missions cleared")
			fmt.Fprintln(out, "All missions deleted.")
			return nil
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	cmd.AddCommand(list, show, del, clearCmd)
	return cmd
}
