package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/movies-api/internal/queue"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Append movie change events to the event log",
	Long: `Consume reads movie events from EVENTS_QUEUE on EVENTS_AMQP_URL and
appends each one as a JSON line to EVENTS_LOG_PATH.  Broker outages are
retried with backoff until SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(cfg.Events.LogPath), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(cfg.Events.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info().
			Str("queue", cfg.Events.Queue).
			Str("log_path", cfg.Events.LogPath).
			Msg("consuming movie events")

		err = queue.NewConsumer(cfg.Events.AMQPURL, cfg.Events.Queue, f, log).Run(ctx)
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("consumer stopped")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
