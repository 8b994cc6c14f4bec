// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/synth-indexer/business/chain/app"
	"github.com/fd1az/synth-indexer/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Pool = di.NewToken[*app.Pool]("chain.Pool")
)

func GetPool(c di.ServiceRegistry) *app.Pool {
	return di.GetToken(c, Pool)
}
