package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leadbot/internal/enrich"
	"leadbot/internal/tracker"
)

var (
	enrichFile  string
	enrichSheet string
	enrichOut   string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Attach RingCentral activity, direction and temperature to a lead tracker",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		leads, err := tracker.ReadLeads(enrichFile, tracker.SheetOptions{Name: enrichSheet})
		if err != nil {
			return eris.Wrap(err, "enrich: read leads")
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		now := time.Now()
		idx, err := a.Contacts.Index(ctx, now)
		if err != nil {
			return eris.Wrap(err, "enrich: build contact index")
		}
		enrich.Enrich(leads, idx, enrich.Options{
			Now:          now,
			Location:     cfg.Location(),
			HistoryLimit: cfg.Enrich.HistoryLimit,
			Rules:        cfg.Rules(),
		})

		if enrichOut == "" {
			return printJSON(cmd, leads)
		}
		if err := tracker.WriteEnriched(enrichOut, leads); err != nil {
			return eris.Wrap(err, "enrich: write tracker")
		}
		zap.L().Info("enrich complete", zap.Int("leads", len(leads)), zap.String("out", enrichOut))
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichFile, "file", "", "lead tracker .xlsx (required)")
	enrichCmd.Flags().StringVar(&enrichSheet, "sheet", "", "sheet name (default first sheet)")
	enrichCmd.Flags().StringVar(&enrichOut, "out", "", "write an enriched .xlsx here (default JSON to stdout)")
	_ = enrichCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(enrichCmd)
}
