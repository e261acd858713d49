package main

import (
	"time"

	"github.com/spf13/cobra"

	"leadbot/internal/reporting"
	"leadbot/internal/timefmt"
)

var (
	reportFrom string
	reportTo   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize stored call and SMS activity per day",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		today := timefmt.DayKey(time.Now(), cfg.Location())
		req := reporting.ActivityRequest{From: reportFrom, To: reportTo}
		if req.From == "" {
			req.From = today
		}
		if req.To == "" {
			req.To = today
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.Reports.Activity(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "first day YYYY-MM-DD (default today)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "last day YYYY-MM-DD (default today)")
	rootCmd.AddCommand(reportCmd)
}
