package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

const (
	gammaMarketsPath   = "/markets"
	gammaPageSize      = 100
	defaultMarketLimit = 200
)

// FetchMarkets implementa ports.MarketFeed. Pagina /markets ordenado por
// volumen de 24h hasta juntar el límite configurado y descarta los mercados
// cerrados o sin dos precios válidos.
func (c *Client) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	markets := make([]domain.Market, 0, c.limit)
	skipped := 0

	for offset := 0; len(markets) < c.limit; offset += gammaPageSize {
		var page gammaMarketsResponse
		if err := c.getJSON(ctx, c.marketsURL(offset), &page); err != nil {
			return nil, fmt.Errorf("polymarket.FetchMarkets: offset %d: %w", offset, err)
		}

		for _, gm := range page {
			m, ok := mapGammaMarket(gm)
			if !ok {
				skipped++
				continue
			}
			markets = append(markets, m)
			if len(markets) == c.limit {
				break
			}
		}

		if len(page) < gammaPageSize {
			break
		}
	}

	slog.Debug("gamma markets fetched", "markets", len(markets), "skipped", skipped)

	if len(markets) == 0 {
		return nil, fmt.Errorf("polymarket.FetchMarkets: %w", ErrNoMarkets)
	}
	return markets, nil
}

func (c *Client) marketsURL(offset int) string {
	q := url.Values{}
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("order", "volume24hr")
	q.Set("ascending", "false")
	q.Set("limit", strconv.Itoa(gammaPageSize))
	q.Set("offset", strconv.Itoa(offset))
	return c.gammaBase + gammaMarketsPath + "?" + q.Encode()
}
