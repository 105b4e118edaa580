// Package log provides the shared zap logger as an fx module.
package log

import (
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/config"
)

var Module = fx.Module("log",
	fx.Provide(New),
	fx.Invoke(registerFlush),
)

// New builds the process logger: production JSON encoding everywhere except
// development, where the console encoder is friendlier.
func New(cfg *config.Config) (*zap.Logger, error) {
	if strings.EqualFold(cfg.Environment, "development") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func registerFlush(lc fx.Lifecycle, logger *zap.Logger) {
	lc.Append(fx.StopHook(func() {
		_ = logger.Sync()
	}))
}
