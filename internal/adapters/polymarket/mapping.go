package polymarket

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// mapGammaMarket convierte un gammaMarket DTO a domain.Market. Devuelve
// false si el mercado no es operable (cerrado, sin dos outcomes o con
// precios fuera de (0, 1)).
func mapGammaMarket(gm gammaMarket) (domain.Market, bool) {
	if gm.Closed || !gm.Active {
		return domain.Market{}, false
	}

	outcomes := decodeStringArray(gm.Outcomes)
	prices := decodeStringArray(gm.OutcomePrices)
	tokenIDs := decodeStringArray(gm.ClobTokenIDs)
	if len(outcomes) != 2 || len(prices) != 2 {
		return domain.Market{}, false
	}

	id := gm.ConditionID
	if id == "" {
		id = gm.ID
	}
	m := domain.Market{
		ID:        id,
		Question:  gm.Question,
		Slug:      gm.Slug,
		Category:  gm.Category,
		EndDate:   parseEndDate(gm.EndDateISO, gm.EndDate),
		Volume:    parseNumber(gm.Volume),
		Volume24h: parseNumber(gm.Volume24h),
		Liquidity: parseNumber(gm.Liquidity),
		Spread:    parseNumber(gm.Spread),
		Active:    gm.Active,
		Closed:    gm.Closed,
	}

	for i := range 2 {
		price, err := decimal.NewFromString(prices[i])
		if err != nil || !price.IsPositive() || !price.LessThan(domain.One) {
			return domain.Market{}, false
		}
		m.Tokens[i] = domain.Token{Outcome: outcomes[i], Price: price}
		if i < len(tokenIDs) {
			m.Tokens[i].TokenID = tokenIDs[i]
		}
	}

	// YES siempre en el índice 0
	if strings.EqualFold(m.Tokens[1].Outcome, "yes") {
		m.Tokens[0], m.Tokens[1] = m.Tokens[1], m.Tokens[0]
	}
	return m, true
}

// decodeStringArray decodifica un array JSON serializado como string, p.ej. `["Yes","No"]`.
func decodeStringArray(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// parseNumber devuelve cero si Gamma manda el campo vacío o mal formado.
func parseNumber(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseEndDate prueba los formatos que usa Polymarket; zero si ninguno encaja.
func parseEndDate(candidates ...string) time.Time {
	for _, s := range candidates {
		if s == "" {
			continue
		}
		for _, layout := range []string{
			time.RFC3339,
			"2006-01-02T15:04:05.000Z",
			"2006-01-02T15:04:05Z",
			"2006-01-02",
		} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
