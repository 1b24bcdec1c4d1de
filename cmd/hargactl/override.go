package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/hargapangan/pangan-monitor/internal/app/service"
	"github.com/hargapangan/pangan-monitor/internal/cache"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/spf13/cobra"
)

func overrideCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Check and submit manual price overrides",
	}
	cmd.AddCommand(overrideCheckCmd(rt))
	cmd.AddCommand(overrideSubmitCmd(rt))
	return cmd
}

func overrideCheckCmd(rt *runtime) *cobra.Command {
	var (
		commodityID uint
		price       float64
		current     float64
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show the deviation and approval tier of a proposed price",
		Long: `Show how far a proposed price deviates from the current national price and
whether it would be auto-approved. Without --current the national price is
fetched from the backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			threshold := rt.cfg.Reconcile.OverrideApprovalThreshold
			policy := reconcile.NewOverridePolicy(threshold)

			var eval reconcile.OverrideEvaluation
			if cmd.Flags().Changed("current") {
				if !(price > 0) {
					return fmt.Errorf("--price must be greater than 0")
				}
				eval = policy.Evaluate(price, &current)
			} else {
				svc := service.NewOverrideService(
					rt.client,
					cache.NewMemorySnapshotCache(rt.cfg.Reconcile.SnapshotTTL),
					nil, nil, nil,
					threshold,
					nil,
				)
				preview, err := svc.Preview(cmd.Context(), rt.session, commodityID, price, nil)
				if err != nil {
					return describe(err)
				}
				eval = *preview
			}

			renderEvaluation(cmd.OutOrStdout(), eval, policy.Threshold)
			return nil
		},
	}
	cmd.Flags().UintVar(&commodityID, "commodity", 0, "commodity id")
	cmd.Flags().Float64Var(&price, "price", 0, "proposed price in rupiah")
	cmd.Flags().Float64Var(&current, "current", 0, "current price; skips the backend lookup")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func overrideSubmitCmd(rt *runtime) *cobra.Command {
	var (
		in       reconcile.OverrideInput
		evidence string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a manual price override to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Date == "" {
				in.Date = time.Now().Format(reconcile.DateLayout)
			}
			if err := reconcile.ValidateOverride(in, time.Now()); err != nil {
				return describe(err)
			}

			req := hargaapi.OverrideRequest{
				CommodityID:   in.CommodityID,
				OverridePrice: in.OverridePrice,
				Reason:        in.Reason,
				SourceInfo:    in.SourceInfo,
				Date:          in.Date,
			}
			if evidence != "" {
				f, err := os.Open(evidence)
				if err != nil {
					return fmt.Errorf("failed to open evidence: %w", err)
				}
				defer f.Close()

				contentType := mime.TypeByExtension(filepath.Ext(evidence))
				if contentType == "" {
					contentType = "application/octet-stream"
				}
				req.Evidence = &hargaapi.File{Name: filepath.Base(evidence), ContentType: contentType, Reader: f}
			}

			result, err := rt.client.SubmitOverride(cmd.Context(), rt.session, req)
			if err != nil {
				return describe(err)
			}

			msg := result.Message
			if msg == "" {
				msg = "Override berhasil dikirim"
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(msg))
			return nil
		},
	}
	cmd.Flags().UintVar(&in.CommodityID, "commodity", 0, "commodity id")
	cmd.Flags().Float64Var(&in.OverridePrice, "price", 0, "override price in rupiah")
	cmd.Flags().StringVar(&in.Reason, "reason", "", "reason, at least 10 characters")
	cmd.Flags().StringVar(&in.SourceInfo, "source", "", "where the price comes from")
	cmd.Flags().StringVar(&in.Date, "date", "", "observation date, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&evidence, "evidence", "", "path of an evidence file to attach")
	_ = cmd.MarkFlagRequired("commodity")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}
