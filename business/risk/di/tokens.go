// Package di contains dependency injection tokens for the risk context.
package di

import (
	"github.com/fd1az/synth-indexer/business/risk/app"
	"github.com/fd1az/synth-indexer/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Calculator = di.NewToken[*app.Calculator]("risk.Calculator")
	Positions  = di.NewToken[app.PositionRepository]("risk.Positions")
	Monitor    = di.NewToken[*app.Monitor]("risk.Monitor")
)

func GetCalculator(c di.ServiceRegistry) *app.Calculator {
	return di.GetToken(c, Calculator)
}

func GetPositions(c di.ServiceRegistry) app.PositionRepository {
	return di.GetToken(c, Positions)
}

func GetMonitor(c di.ServiceRegistry) *app.Monitor {
	return di.GetToken(c, Monitor)
}
