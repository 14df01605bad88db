package ports

import (
	"context"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// MarketFeed obtiene el universo de mercados activos con precio y liquidez.
type MarketFeed interface {
	// FetchMarkets devuelve una foto de los mercados abiertos. Un mercado
	// que deja de aparecer se considera resuelto por el venue.
	FetchMarkets(ctx context.Context) ([]domain.Market, error)
}
