// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/digital-drip/ddrip-deploy/core/db"
	"github.com/digital-drip/ddrip-deploy/core/model"
	"github.com/digital-drip/ddrip-deploy/internal/i18n"
)

func openHistory(cmd *cobra.Command) (*db.Store, error) {
	c, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return db.Open(cmd.Context(), c.History.Type, c.History.DSN)
}

func newHistoryCmd() *cobra.Command {
	var filter db.RunFilter
	cmd := &cobra.Command{
		Use:   "history",
		Short: i18n.T("cli.history.short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Stage, "stage", "", i18n.T("cli.history.flag.stage"))
	cmd.Flags().StringVar(&filter.Task, "task", "", i18n.T("cli.history.flag.task"))
	cmd.Flags().StringVar(&filter.Host, "host", "", i18n.T("cli.history.flag.host"))
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, i18n.T("cli.history.flag.limit"))
	cmd.AddCommand(newHistoryExportCmd())
	return cmd
}

func newHistoryExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: i18n.T("cli.history.export.short"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if args[0] == "-" {
				return store.Export(cmd.Context(), cmd.OutOrStdout())
			}
			f, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return fmt.Errorf(i18n.T("cli.history.export.create_failed"), err)
			}
			if err := store.Export(cmd.Context(), f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.history.exported", args[0]))
			return nil
		},
	}
}

func printRuns(w io.Writer, runs []model.TaskRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, i18n.T("cli.history.empty"))
		return
	}
	st := newStyles(w)
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Local().Format(time.DateTime),
			r.Stage,
			r.Task,
			r.Host,
			string(r.Status),
			r.Error,
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.subtle).
		Headers(
			i18n.T("cli.history.col.id"),
			i18n.T("cli.history.col.started"),
			i18n.T("cli.history.col.stage"),
			i18n.T("cli.history.col.task"),
			i18n.T("cli.history.col.host"),
			i18n.T("cli.history.col.status"),
			i18n.T("cli.history.col.error"),
		).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.header
			}
			s := lipgloss.NewStyle().Padding(0, 1)
			if col == 5 && row >= 0 && row < len(rows) {
				switch model.RunStatus(rows[row][5]) {
				case model.RunOK:
					return st.ok.Padding(0, 1)
				case model.RunFailed:
					return st.failed.Padding(0, 1)
				case model.RunDryRun, model.RunSkipped:
					return st.special.Padding(0, 1)
				}
			}
			return s
		})
	fmt.Fprintln(w, t.Render())
}
