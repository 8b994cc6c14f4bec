// Package di contains dependency injection tokens for the market context.
package di

import (
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/synth-indexer/business/market/app"
	"github.com/fd1az/synth-indexer/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Builder = di.NewToken[*app.Builder]("market.Builder")
	History = di.NewToken[*app.HistoryService]("market.History")
)

// Private dependency tokens - internal to market module
var (
	Store = di.NewToken[app.HistoryStore]("market:store")
	Redis = di.NewToken[*redis.Client]("market:redis")
)

func GetBuilder(c di.ServiceRegistry) *app.Builder {
	return di.GetToken(c, Builder)
}

func GetHistory(c di.ServiceRegistry) *app.HistoryService {
	return di.GetToken(c, History)
}

func GetStore(c di.ServiceRegistry) app.HistoryStore {
	return di.GetToken(c, Store)
}

func GetRedis(c di.ServiceRegistry) *redis.Client {
	return di.GetToken(c, Redis)
}
