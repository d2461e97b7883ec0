package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sqlsweep/sqlsweep/internal/history"
	"github.com/sqlsweep/sqlsweep/internal/theme"
	"github.com/sqlsweep/sqlsweep/internal/ui/prompt"
)

func newHistoryCmd(rt *rootState) *cobra.Command {
	var (
		limit    int
		search   string
		clearAll bool
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs",
		Long: `history lists past runs of every tool, newest first. Connections are
stored sanitized; credentials never reach the history file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), rt, limit, search, clearAll, yes)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&limit, "limit", "n", 20, "Maximum runs to show")
	f.StringVar(&search, "search", "", "Filter runs by table, database, or tool name")
	f.BoolVar(&clearAll, "clear", false, "Delete all history entries")
	f.BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt for --clear")
	return cmd
}

func runHistory(ctx context.Context, rt *rootState, limit int, search string, clearAll, yes bool) error {
	p := rt.printer

	if !rt.cfg.History.Enabled {
		return errors.New("history is disabled in the config")
	}
	path, err := rt.cfg.HistoryPath()
	if err != nil {
		return err
	}
	store, err := history.Open(path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	if clearAll {
		if !yes && !prompt.Confirm("Clear history", "Delete all recorded runs?", theme.Current) {
			p.Mutedf("History unchanged.")
			return nil
		}
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		p.Successf("History cleared.")
		return nil
	}

	var runs []history.Run
	if search != "" {
		runs, err = store.Search(search, limit)
	} else {
		runs, err = store.Recent(limit)
	}
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(runs) == 0 {
		p.Println("No runs recorded.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		done := ""
		if r.Committed {
			done = "yes"
		}
		rows = append(rows, []string{
			r.StartedAt.Format("2006-01-02 15:04"),
			r.Tool,
			r.Database,
			r.RootTable,
			r.Mode,
			strconv.Itoa(r.Records),
			done,
		})
	}
	p.Table([]string{"WHEN", "TOOL", "DATABASE", "TABLE", "MODE", "ROWS", "COMMITTED"}, rows)
	return nil
}
