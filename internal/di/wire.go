//go:build wireinject
// +build wireinject

package di

import (
	"ModelArena/pkg/config"
	"ModelArena/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvidePriceCache,
		ProvidePriceFeed,
		ProvideStore,
		ProvideTradePublisher,
		ProvideQueue,

		// Use cases
		ProvideMirror,
		ProvideArena,

		// Transport
		ProvideRateLimiter,
		ProvideArenaHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
