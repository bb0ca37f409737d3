package paymentgateway

import (
	"fmt"
	"log/slog"

	"github.com/frahmantamala/pix-deposit/internal"
)

// New builds the Gateway selected by cfg.Provider.
func New(cfg internal.PaymentConfig, logger *slog.Logger) (Gateway, error) {
	switch cfg.Provider {
	case "", internal.ProviderHTTP:
		return NewClient(Config{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			CreatePath: cfg.CreatePath,
			StatusPath: cfg.StatusPath,
			Timeout:    cfg.Timeout,
		}, logger), nil
	case internal.ProviderMercadoPago:
		return NewMercadoPagoGateway(cfg.MercadoPagoToken, logger)
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}
