package main

import (
	"fmt"
	"strconv"

	"github.com/hargapangan/pangan-monitor/internal/app/service"
	"github.com/spf13/cobra"
)

func trendCmd(rt *runtime) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "trend <commodity-id>",
		Short: "Show the national vs. market price trend of a commodity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid commodity id %q", args[0])
			}

			svc := service.NewTrendService(rt.client, nil, rt.cfg.Reconcile.TrendLookbackDays)
			trend, err := svc.GetTrend(cmd.Context(), rt.session, uint(id), days)
			if err != nil {
				return describe(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Tren harga komoditas %d, %d hari terakhir", trend.CommodityID, trend.Days)))
			if trend.Dropped > 0 {
				fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("%d titik data tidak valid dilewati", trend.Dropped)))
			}
			return renderTrend(out, trend.Points)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, fmt.Sprintf("lookback in days, at most %d (default: TREND_LOOKBACK_DAYS)", service.MaxTrendDays))
	return cmd
}
