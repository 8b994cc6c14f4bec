// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/synth-indexer/business/pricing/app"
	"github.com/fd1az/synth-indexer/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Scheduler = di.NewToken[*app.Scheduler]("pricing.Scheduler")
)

// Private dependency tokens - internal to pricing module
var (
	Sources = di.NewToken[[]app.PriceSource]("pricing:sources")
)

// Helper functions for type-safe access
func GetScheduler(c di.ServiceRegistry) *app.Scheduler {
	return di.GetToken(c, Scheduler)
}

func GetSources(c di.ServiceRegistry) []app.PriceSource {
	return di.GetToken(c, Sources)
}
