package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-send leads from the fallback queue",
	Long:  "Re-sends every file in the fallback directory to the broker and removes the files it accepts. Safe to run repeatedly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("replay"); err != nil {
			return err
		}
		broker, err := initBroker()
		if err != nil {
			return err
		}
		defer broker.Close() //nolint:errcheck

		p, err := initPublisher(broker)
		if err != nil {
			return err
		}

		res, err := p.Replay(ctx)
		if err != nil {
			return eris.Wrap(err, "replay fallback queue")
		}
		zap.L().Info("replay complete",
			zap.String("dir", cfg.Publish.FallbackDir),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed),
			zap.Int("remaining", res.Remaining),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		if res.Failed > 0 {
			return eris.Errorf("replay: %d message(s) could not be sent", res.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
