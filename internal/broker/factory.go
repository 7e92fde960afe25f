package broker

import (
	"fmt"

	"go.uber.org/zap"

	"HorizonTrader/internal/config"
	"HorizonTrader/internal/fund"
)

// New builds the configured broker, wrapped in Guarded.
func New(cfg *config.Config, prices PriceSource, logger *zap.Logger) (Broker, error) {
	var inner Broker
	switch cfg.Broker.Kind {
	case "paper":
		account, err := fund.NewManager(cfg.Broker.PaperState, cfg.Broker.StartEquity)
		if err != nil {
			return nil, fmt.Errorf("open paper account: %w", err)
		}
		inner = NewPaper(account, prices)
	case "http":
		inner = NewOpenAlgo(OpenAlgoConfig{
			BaseURL:  cfg.Broker.BaseURL,
			APIKey:   cfg.Broker.APIKey,
			Exchange: cfg.Broker.Exchange,
			Product:  cfg.Broker.Product,
			Timeout:  cfg.Timeouts.Broker,
			Proxy:    cfg.Proxy,
		})
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Broker.Kind)
	}
	logger.Info("broker ready", zap.String("kind", inner.Name()))
	return NewGuarded(inner, GuardConfig{
		Timeout:      cfg.Timeouts.Broker,
		OrdersPerSec: cfg.Broker.OrdersPerSec,
		ReadRetries:  2,
	}, logger), nil
}
