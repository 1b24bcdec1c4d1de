package main

import (
	"fmt"

	"github.com/hargapangan/pangan-monitor/internal/app/service"
	"github.com/hargapangan/pangan-monitor/internal/cache"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/spf13/cobra"
)

type compareFlags struct {
	commodityID uint
	date        string
	startDate   string
	endDate     string
	remote      bool
}

func (f *compareFlags) register(cmd *cobra.Command) {
	cmd.Flags().UintVar(&f.commodityID, "commodity", 0, "commodity id (default: all commodities)")
	cmd.Flags().StringVar(&f.date, "date", "", "single day, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.startDate, "start", "", "window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.endDate, "end", "", "window end, YYYY-MM-DD")
}

func (f *compareFlags) query() service.CompareQuery {
	return service.CompareQuery{
		CommodityID: f.commodityID,
		Date:        f.date,
		StartDate:   f.startDate,
		EndDate:     f.endDate,
	}
}

func (rt *runtime) comparisonService() service.ComparisonService {
	return service.NewComparisonService(rt.client, cache.NewMemorySnapshotCache(rt.cfg.Reconcile.SnapshotTTL), nil)
}

func compareCmd(rt *runtime) *cobra.Command {
	flags := &compareFlags{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare national prices with market submissions",
		Long: `Compare the national price of each commodity with the prices markets
reported over a window. Without --date or --start/--end the window is today.

With --remote the backend's own comparison endpoint is used instead of the
local reconciliation; it only accepts a single --date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.remote {
				return runRemoteCompare(cmd, rt, flags)
			}
			return runCompare(cmd, rt, flags)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.remote, "remote", false, "use the backend comparison endpoint")
	return cmd
}

func runCompare(cmd *cobra.Command, rt *runtime, flags *compareFlags) error {
	report, err := rt.comparisonService().Compare(cmd.Context(), rt.session, flags.query())
	if err != nil {
		return describe(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Perbandingan harga %s s/d %s", report.StartDate, report.EndDate)))
	if dropped := report.DroppedNational + report.DroppedMarket; dropped > 0 {
		fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("%d data tidak valid dilewati", dropped)))
	}
	return renderComparison(out, report.Comparison)
}

func runRemoteCompare(cmd *cobra.Command, rt *runtime, flags *compareFlags) error {
	if flags.startDate != "" || flags.endDate != "" {
		return fmt.Errorf("--remote only supports --date")
	}
	if flags.date != "" {
		if _, err := reconcile.ParseDate(flags.date); err != nil {
			return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", flags.date)
		}
	}

	remote, err := rt.client.CompareMarketPrices(cmd.Context(), rt.session, hargaapi.CompareQuery{
		CommodityID: flags.commodityID,
		Date:        flags.date,
	})
	if err != nil {
		return describe(err)
	}

	// the backend summary only carries a count and an average; fill the rest locally
	cmp := reconcile.Comparison{
		Results: remote.Results,
		Summary: reconcile.Summarize(remote.Results),
	}
	fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("Perbandingan harga (backend)"))
	return renderComparison(cmd.OutOrStdout(), cmp)
}

// describe turns client and validation errors into a readable message
func describe(err error) error {
	if fields, ok := reconcile.AsFieldErrors(err); ok {
		return fmt.Errorf("invalid input: %s", fields.Error())
	}
	if msg, ok := hargaapi.RejectionMessage(err); ok {
		return fmt.Errorf("rejected by backend: %s", msg)
	}
	return err
}
