package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// Notifier presenta la actividad del agente al operador.
type Notifier interface {
	// NotifyTrade informa de una apertura o de un cierre (según Status).
	NotifyTrade(ctx context.Context, trade domain.Trade) error

	// Notify muestra el resumen del ciclo.
	Notify(ctx context.Context, stats domain.PortfolioStats) error

	// Report imprime el informe completo de una lista de trades.
	Report(ctx context.Context, trades []domain.Trade, initialBalance decimal.Decimal) error
}
