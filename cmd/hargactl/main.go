package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hargapangan/pangan-monitor/config"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
	"github.com/spf13/cobra"
)

var version = "dev"

// options flags shared by every command
type options struct {
	baseURL   string
	token     string
	timeout   time.Duration
	threshold float64
	logLevel  string
}

// runtime what a command needs to talk to the price backend
type runtime struct {
	cfg     *config.Config
	client  *hargaapi.Client
	session hargaapi.Session
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rt := &runtime{}

	cmd := &cobra.Command{
		Use:   "hargactl",
		Short: "Reconcile national food prices with market submissions",
		Long: `hargactl talks to the price backend directly: it compares national prices
with what markets report, draws trends, checks overrides before they are
submitted and exports the comparison as a workbook.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.init(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", "", "price backend URL (default: HARGA_API_BASE_URL)")
	flags.StringVar(&opts.token, "token", "", "bearer token (default: HARGA_API_TOKEN)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "request timeout (default: HARGA_API_TIMEOUT)")
	flags.Float64Var(&opts.threshold, "threshold", 0, "override approval threshold in percent (default: OVERRIDE_APPROVAL_THRESHOLD)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(compareCmd(rt))
	cmd.AddCommand(trendCmd(rt))
	cmd.AddCommand(overrideCmd(rt))
	cmd.AddCommand(exportCmd(rt))
	cmd.AddCommand(watchCmd(rt))

	return cmd
}

func (rt *runtime) init(cmd *cobra.Command, opts *options) error {
	logger.Initialize(logger.Config{
		Level:       opts.logLevel,
		Format:      "console",
		EnableColor: true,
	})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("base-url") {
		cfg.Upstream.BaseURL = opts.baseURL
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Upstream.Timeout = opts.timeout
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Reconcile.OverrideApprovalThreshold = opts.threshold
	}

	token := opts.token
	if token == "" {
		token = os.Getenv("HARGA_API_TOKEN")
	}

	client, err := hargaapi.NewClient(hargaapi.Config{
		BaseURL:  cfg.Upstream.BaseURL,
		Timeout:  cfg.Upstream.Timeout,
		PageSize: cfg.Upstream.PageSize,
	})
	if err != nil {
		return err
	}

	rt.cfg = cfg
	rt.client = client
	rt.session = hargaapi.Session{Token: token}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}
