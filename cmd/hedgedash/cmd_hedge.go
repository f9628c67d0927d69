package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hedgedash/internal/hedge"
	"hedgedash/internal/report"
)

var (
	hedgeNotional string
	hedgeFormat   string
	hedgeOutDir   string
)

var hedgeCmd = &cobra.Command{
	Use:   "hedge",
	Short: "Compute the short-hedge table for a notional amount",
	Long: `Fetch the current futures fee table and size a short hedge in every
configured contract family.

Example:
  hedgedash hedge --notional 500 --format csv`,
	RunE: runHedge,
}

func init() {
	rootCmd.AddCommand(hedgeCmd)
	hedgeCmd.Flags().StringVarP(&hedgeNotional, "notional", "n", "", "notional amount in 万元 (required)")
	hedgeCmd.Flags().StringVarP(&hedgeFormat, "format", "f", "text", "output format: text, json or csv")
	hedgeCmd.Flags().StringVarP(&hedgeOutDir, "out", "o", "", "also save the table under this directory")
	_ = hedgeCmd.MarkFlagRequired("notional")
}

func runHedge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	notional, err := hedge.ParseNotional(hedgeNotional)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(hedgeFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	svc := buildServices(ctx, cfg)

	table, err := svc.hedge.Compute(ctx, notional)
	if err != nil {
		return err
	}

	render := func(w io.Writer) error { return report.WriteHedge(w, table, format) }
	if err := render(cmd.OutOrStdout()); err != nil {
		return err
	}
	if hedgeOutDir != "" {
		path, err := report.Save(hedgeOutDir, fmt.Sprintf("hedge_%s", table.ComputedAt.Format("20060102_150405")), format, render)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved to %s\n", path)
	}
	return nil
}
