package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	paymentpkg "github.com/frahmantamala/pix-deposit/internal/payment"
	"github.com/frahmantamala/pix-deposit/internal/paymentgateway"
	"github.com/frahmantamala/pix-deposit/pkg/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch <payment-id>",
	Short: "Follow a payment until it resolves",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(".")
		if err != nil {
			return err
		}
		log := logger.Discard()

		gateway, err := paymentgateway.New(cfg.Payment, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		hub := paymentpkg.NewHub(gateway, pollerConfig(cfg.Payment), nil, log)
		defer hub.Close()

		return watchPayment(ctx, paymentpkg.NewService(nil, nil, gateway, hub, log), args[0], cmd.OutOrStdout())
	},
}
