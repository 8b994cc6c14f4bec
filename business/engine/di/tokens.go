// Package di contains dependency injection tokens for the engine context.
package di

import (
	"github.com/fd1az/synth-indexer/business/engine/app"
	"github.com/fd1az/synth-indexer/internal/di"
)

// Public service tokens - exposed to outer layers
var (
	Engine = di.NewToken[*app.Engine]("engine.Engine")
)

func GetEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, Engine)
}
