package polymarket

import "encoding/json"

// DTOs raw de la Gamma API. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket es un mercado tal como lo devuelve Gamma.
// Gamma devuelve algunos campos numéricos como strings JSON, usamos json.Number.
// outcomes, outcomePrices y clobTokenIds vienen como arrays JSON serializados
// dentro de un string.
type gammaMarket struct {
	ID            string      `json:"id"`
	ConditionID   string      `json:"conditionId"`
	Question      string      `json:"question"`
	Slug          string      `json:"slug"`
	Category      string      `json:"category"`
	EndDateISO    string      `json:"endDateIso"`
	EndDate       string      `json:"endDate"`
	Volume        json.Number `json:"volume"`
	Volume24h     json.Number `json:"volume24hr"`
	Liquidity     json.Number `json:"liquidity"`
	Spread        json.Number `json:"spread"`
	Outcomes      string      `json:"outcomes"`
	OutcomePrices string      `json:"outcomePrices"`
	ClobTokenIDs  string      `json:"clobTokenIds"`
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
}
