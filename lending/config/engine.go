package config

import (
	"github.com/AntonStoeckl/library-lending-go/lending/engine"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
)

// EngineOptions translates the engine settings into engine options.
func EngineOptions(cfg EngineConfig) []engine.Option {
	return []engine.Option{
		engine.WithCollections(cfg.Collections.Collections()),
		engine.WithRetryOptions(
			shell.WithMaxAttempts(cfg.Retry.MaxAttempts),
			shell.WithBaseDelay(cfg.Retry.BaseDelay),
			shell.WithJitterFactor(cfg.Retry.JitterFactor),
		),
		engine.WithReconcileConcurrency(cfg.ReconcileConcurrency),
		engine.WithReconcileGrace(cfg.ReconcileGrace),
	}
}
