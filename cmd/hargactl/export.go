package main

import (
	"fmt"
	"os"

	"github.com/hargapangan/pangan-monitor/internal/report"
	"github.com/spf13/cobra"
)

func exportCmd(rt *runtime) *cobra.Command {
	flags := &compareFlags{}
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the comparison as an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := rt.comparisonService().Compare(cmd.Context(), rt.session, flags.query())
			if err != nil {
				return describe(err)
			}

			path := output
			if path == "" {
				path = exportFilename(result.StartDate, result.EndDate)
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}

			err = report.WriteComparisonXLSX(f, report.ComparisonExport{
				Comparison: result.Comparison,
				StartDate:  result.StartDate,
				EndDate:    result.EndDate,
			})
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("%d komoditas ditulis ke %s", len(result.Results), path)))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: perbandingan-harga-<start>_<end>.xlsx)")
	return cmd
}

func exportFilename(start, end string) string {
	return fmt.Sprintf("perbandingan-harga-%s_%s.xlsx", start, end)
}
