package main

import (
	"os/signal"
	"syscall"

	"github.com/aderut/moridam/internal/notify"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func notifierCommand() *cli.Command {
	return &cli.Command{
		Name:  "notifier",
		Usage: "consume placed orders and deliver staff notifications",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer := notify.NewConsumer(
				cfg.Kafka.Brokers,
				cfg.Kafka.Topic,
				cfg.Kafka.GroupID,
				notify.NewLogSender(log),
				cfg.Notify.WhatsAppNumber,
				log,
			)
			defer consumer.Close()

			log.Info("notifier starting",
				zap.Strings("brokers", cfg.Kafka.Brokers),
				zap.String("topic", cfg.Kafka.Topic),
				zap.String("group_id", cfg.Kafka.GroupID),
			)
			return consumer.Run(ctx)
		},
	}
}
