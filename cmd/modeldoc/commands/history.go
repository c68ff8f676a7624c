package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/modeldoc/internal/eventstore"
	ferrors "git.home.luguber.info/inful/modeldoc/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of runs to list" default:"10"`
	RunID string `arg:"" optional:"" name:"run" help:"Show a single run as JSON"`
}

func (h *HistoryCmd) Run(global *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if cfg.HistoryDB == "" {
		return ferrors.ConfigError("history_db is not configured").WithContext("path", root.Config).Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := global.context()
	if h.RunID != "" {
		run, ok, err := eventstore.GetRun(ctx, store, h.RunID)
		if err != nil {
			return err
		}
		if !ok {
			return ferrors.NewError(ferrors.CategoryNotFound, "run not found").WithContext("run_id", h.RunID).Build()
		}
		enc := json.NewEncoder(global.stdout())
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	runs, err := eventstore.Runs(ctx, store, h.Limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(global.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tPAGES\tFAILURES\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.RunID, r.StartedAt.Format(time.RFC3339), r.Status, r.Pages, r.Failures, r.Duration.Round(time.Millisecond))
	}
	return w.Flush()
}
