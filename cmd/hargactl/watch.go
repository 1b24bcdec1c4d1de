package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/internal/view"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
	"github.com/spf13/cobra"
)

// comparer fetches the comparison of one commodity
type comparer interface {
	CompareCommodity(ctx context.Context, sess hargaapi.Session, commodityID uint) (*reconcile.Comparison, error)
}

func watchCmd(rt *runtime) *cobra.Command {
	var (
		commodityID uint
		interval    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh the comparison of a commodity periodically",
		Long: `Refresh the comparison of one commodity every --interval until interrupted.
A refresh that finishes after a newer one has started is not shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			w := &watcher{
				source:      rt.comparisonService(),
				session:     rt.session,
				commodityID: commodityID,
				tracker:     view.NewTracker[*reconcile.Comparison](),
				out:         cmd.OutOrStdout(),
			}
			return w.run(cmd.Context(), interval)
		},
	}
	cmd.Flags().UintVar(&commodityID, "commodity", 0, "commodity id")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "refresh interval")
	_ = cmd.MarkFlagRequired("commodity")
	return cmd
}

type watcher struct {
	source      comparer
	session     hargaapi.Session
	commodityID uint
	tracker     *view.Tracker[*reconcile.Comparison]
	out         io.Writer
}

func (w *watcher) run(ctx context.Context, interval time.Duration) error {
	updates := make(chan uint64, 1)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.refresh(ctx, interval, updates)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.refresh(ctx, interval, updates)
		case gen := <-updates:
			cmp, latest, ok := w.tracker.Latest()
			if !ok || latest != gen {
				continue
			}
			fmt.Fprintln(w.out, subtleStyle.Render(time.Now().Format("15:04:05")))
			if err := renderComparison(w.out, *cmp); err != nil {
				return err
			}
		}
	}
}

// refresh starts a fetch; only the newest fetch may publish its result
func (w *watcher) refresh(ctx context.Context, timeout time.Duration, updates chan<- uint64) {
	gen := w.tracker.Begin()
	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmp, err := w.source.CompareCommodity(fetchCtx, w.session, w.commodityID)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("Comparison refresh failed", map[string]interface{}{
					"commodity_id": w.commodityID,
					"error":        describe(err).Error(),
				})
			}
			return
		}
		if !w.tracker.Commit(gen, cmp) {
			return
		}
		select {
		case updates <- gen:
		case <-ctx.Done():
		}
	}()
}
