package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/textscore/internal/watch"
	"github.com/cognicore/textscore/pkg/textscore/internalerr"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-score a CSV file whenever it or its mapping changes",
	Long: `Run once, then re-run whenever the input or mapping file changes on disk.
Takes the same flags as run. Stop with Ctrl+C.

Example:
  textscore watch -i lyrics.csv -m mapping.yaml --jsonl --html`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addRunFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	req := runRequest()
	if req.Input == "" {
		return fmt.Errorf("watch: %w", internalerr.ErrMissingInput)
	}

	engine, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	rerun := func(ctx context.Context, changed []string) {
		rep, err := engine.Run(ctx, req)
		if err != nil {
			// keep watching; the next save may fix it
			currentLogger().Error("run failed", zap.Strings("changed", changed), zap.Error(err))
			return
		}
		if err := reportTable(out, rep); err != nil {
			currentLogger().Warn("failed to print report", zap.Error(err))
		}
	}
	rerun(ctx, nil)

	w, err := watch.New([]string{req.Input, req.MappingPath}, rerun, watch.WithLogger(currentLogger()))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Watching %s for changes (Ctrl+C to stop)\n", req.Input)
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return err
	}
	<-ctx.Done()
	return w.Stop()
}
