package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// defaultDaysToExpiry se usa cuando el mercado no trae fecha de resolución.
const defaultDaysToExpiry = 30.0

// Market representa un mercado de predicción binario en Polymarket tal como
// lo ve el agente en un ciclo: precio actual, liquidez y fecha de resolución.
type Market struct {
	ID        string
	Question  string
	Slug      string
	Category  string
	EndDate   time.Time // fecha de resolución (zero = desconocida)
	Volume    decimal.Decimal
	Volume24h decimal.Decimal
	Liquidity decimal.Decimal
	Spread    decimal.Decimal // spread cotizado; zero = desconocido
	Tokens    [2]Token
	Active    bool
	Closed    bool
}

// Token es uno de los dos lados del mercado (YES/NO).
type Token struct {
	TokenID string
	Outcome string // "Yes" | "No"
	Price   decimal.Decimal
}

// YesToken devuelve el token YES (índice 0 por convención de la API).
func (m Market) YesToken() Token { return m.Tokens[0] }

// NoToken devuelve el token NO (índice 1 por convención de la API).
func (m Market) NoToken() Token { return m.Tokens[1] }

// YesPrice es el precio implícito del lado YES.
func (m Market) YesPrice() decimal.Decimal { return m.Tokens[0].Price }

// PriceFor devuelve el precio del lado que compra la dirección dada.
// Para NO usa el complemento del YES, igual que al abrir la posición.
func (m Market) PriceFor(d Direction) decimal.Decimal {
	return d.SidePrice(m.YesPrice())
}

// TokenFor devuelve el token_id del lado que compra la dirección dada.
func (m Market) TokenFor(d Direction) string {
	switch d {
	case DirectionYes:
		return m.YesToken().TokenID
	case DirectionNo:
		return m.NoToken().TokenID
	default:
		return ""
	}
}

// BookSpread devuelve el spread cotizado si existe; si no, YES + NO − 1.
func (m Market) BookSpread() decimal.Decimal {
	if m.Spread.IsPositive() {
		return m.Spread
	}
	if m.Tokens[1].Price.IsZero() {
		return decimal.Zero
	}
	return m.Tokens[0].Price.Add(m.Tokens[1].Price).Sub(One).Abs()
}

// DaysToExpiry devuelve los días hasta la resolución (30 si no hay fecha).
func (m Market) DaysToExpiry(now time.Time) float64 {
	if m.EndDate.IsZero() {
		return defaultDaysToExpiry
	}
	return m.EndDate.Sub(now).Hours() / 24
}

// IndexMarkets construye un mapa id → mercado para búsquedas O(1).
func IndexMarkets(markets []Market) map[string]Market {
	byID := make(map[string]Market, len(markets))
	for _, m := range markets {
		byID[m.ID] = m
	}
	return byID
}
