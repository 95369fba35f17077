/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foodmap/apiserver/config"
	"github.com/foodmap/apiserver/internal/mail"
	"github.com/foodmap/apiserver/internal/mq"
)

// workerCmd represents the worker command. It consumes the outbound
// mail channel that the API publishes to.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the outbound mail worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		broker, err := newBroker(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer broker.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-done
			cancel()
		}()

		worker := mail.NewWorker(mq.New(broker), cfg.Mail.Channel, mail.LogMailer{})
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mail worker failed: %w", err)
		}
		return nil
	},
}

func newBroker(ctx context.Context, cfg config.Config) (mq.Backend, error) {
	switch cfg.MQ.Backend {
	case "rabbitmq":
		return mq.NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		return mq.NewPubSubClient(ctx, cfg.PubSub)
	case "":
		return nil, fmt.Errorf("MQ_BACKEND is required for the worker")
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
