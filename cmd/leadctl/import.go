package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leadbot/internal/tracker"
)

var (
	importFile  string
	importSheet string
	importKind  string
	importDay   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a call-log or SMS export spreadsheet into the event log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		kind := tracker.Kind(importKind)
		if kind != tracker.KindCalls && kind != tracker.KindSMS {
			return eris.Errorf("import: --kind must be calls or sms, got %q", importKind)
		}

		activity, err := tracker.ReadActivity(importFile, tracker.SheetOptions{Name: importSheet}, kind)
		if err != nil {
			return eris.Wrap(err, "import: read spreadsheet")
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Engine(nil).Import(ctx, importDay, activity.Calls, activity.SMS)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.String("file", importFile),
			zap.String("kind", importKind),
			zap.String("day", res.Day),
		)
		return printJSON(cmd, res)
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to .xlsx export (required)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet name (default first sheet)")
	importCmd.Flags().StringVar(&importKind, "kind", "calls", "calls or sms")
	importCmd.Flags().StringVar(&importDay, "day", "", "day bucket YYYY-MM-DD (default today)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
