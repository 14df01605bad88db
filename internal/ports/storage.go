package ports

import (
	"context"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// TradeStore persiste los trades y el histórico del portfolio.
type TradeStore interface {
	// SaveTrade inserta o actualiza el trade por ID. Se llama al abrir y al cerrar.
	SaveTrade(ctx context.Context, trade domain.Trade) error

	// SaveDailySnapshot guarda la foto del portfolio del día (UTC), sobrescribiendo la anterior.
	SaveDailySnapshot(ctx context.Context, stats domain.PortfolioStats) error

	// LogCycle registra el resultado de un ciclo.
	LogCycle(ctx context.Context, cycle domain.CycleLog) error

	// LoadTrades devuelve todos los trades en orden de apertura.
	LoadTrades(ctx context.Context) ([]domain.Trade, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
