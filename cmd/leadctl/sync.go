package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leadbot/internal/syncer"
)

var syncDay string

var syncCmd = &cobra.Command{
	Use:       "sync [calls|sms|all]",
	Short:     "Pull one day of call log and/or SMS from RingCentral into the event log",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"calls", "sms", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var raw string
		if len(args) == 1 {
			raw = args[0]
		}
		kind, err := syncer.ParseKind(raw)
		if err != nil {
			return err
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		rc, err := a.Telephony(ctx)
		if err != nil {
			return eris.Wrap(err, "sync: ringcentral client")
		}

		res, err := a.Engine(rc).Run(ctx, syncer.Request{Kind: kind, Day: syncDay})
		if perr := printJSON(cmd, res); perr != nil {
			zap.L().Warn("sync: print result", zap.Error(perr))
		}
		if err != nil {
			return eris.Wrap(err, "sync")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncDay, "day", "", "day bucket YYYY-MM-DD (default today)")
	rootCmd.AddCommand(syncCmd)
}
