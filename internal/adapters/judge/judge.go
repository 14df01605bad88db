// Package judge provides a deterministic stand-in for the reasoning
// pipeline: it draws bull and bear probabilities from a per-market seeded
// source and applies the judge's calibration and direction rules to them.
package judge

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/simulation"
)

const modelName = "sim-judge-v1"

var (
	maxDeviation   = decimal.RequireFromString("0.20")
	directionBand  = decimal.RequireFromString("0.08")
	minConfidence  = decimal.RequireFromString("0.55")
	minCaseGap     = decimal.RequireFromString("0.05")
	priceFloor     = decimal.RequireFromString("0.01")
	priceCeil      = decimal.RequireFromString("0.99")
	confidenceBase = decimal.RequireFromString("0.50")
	confidenceSpan = decimal.RequireFromString("0.40")
	caseNoise      = decimal.RequireFromString("0.06")
)

// Config configura el juez simulado.
type Config struct {
	Seed    uint64
	APICost decimal.Decimal // reported on every verdict
}

// Simulated implements ports.VerdictSource. The same seed and market always
// give the same verdict.
type Simulated struct {
	seed    uint64
	apiCost decimal.Decimal
}

// New crea el juez simulado.
func New(cfg Config) *Simulated {
	return &Simulated{seed: cfg.Seed, apiCost: cfg.APICost}
}

// Judge renders a verdict for m.
func (s *Simulated) Judge(ctx context.Context, m domain.Market) (domain.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.Verdict{}, fmt.Errorf("judge.Judge: %w", err)
	}
	yes := m.YesPrice()
	if !yes.IsPositive() || !yes.LessThan(domain.One) {
		return domain.Verdict{}, fmt.Errorf("judge.Judge: market %s has no YES price", m.ID)
	}

	r := simulation.NewSeeded(s.seed ^ hashID(m.ID))
	draw := func() decimal.Decimal { return decimal.NewFromFloat(r.Float64()) }
	symmetric := func(span decimal.Decimal) decimal.Decimal {
		return draw().Mul(decimal.NewFromInt(2)).Sub(domain.One).Mul(span)
	}

	fair := domain.Clamp(yes.Add(symmetric(maxDeviation)), priceFloor, priceCeil).Round(4)
	bull := domain.Clamp(fair.Add(symmetric(caseNoise)), priceFloor, priceCeil).Round(4)
	bearNo := domain.Clamp(domain.One.Sub(fair).Add(symmetric(caseNoise)), priceFloor, priceCeil).Round(4)
	conf := confidenceBase.Add(draw().Mul(confidenceSpan)).Round(2)

	v := domain.Verdict{
		MarketID:        m.ID,
		Question:        m.Question,
		FairValue:       fair,
		Confidence:      conf,
		Edge:            fair.Sub(yes),
		BullProbability: bull,
		BearProbability: bearNo,
		Desk:            deskFor(m),
		Model:           modelName,
		APICost:         s.apiCost,
	}
	v.Direction, v.Reasoning = decide(v, yes)
	return v, nil
}

// decide applies the skip rules first, then the direction band.
func decide(v domain.Verdict, yes decimal.Decimal) (domain.Direction, string) {
	gap := v.BullProbability.Sub(domain.One.Sub(v.BearProbability)).Abs()
	switch {
	case v.Confidence.LessThan(minConfidence):
		return domain.DirectionSkip, "confidence " + v.Confidence.StringFixed(2) + " too low"
	case gap.LessThan(minCaseGap):
		return domain.DirectionSkip, "bull and bear within " + domain.Pct(minCaseGap)
	case v.FairValue.GreaterThan(yes.Add(directionBand)):
		return domain.DirectionYes, "fair " + v.FairValue.StringFixed(2) + " above market " + yes.StringFixed(2)
	case v.FairValue.LessThan(yes.Sub(directionBand)):
		return domain.DirectionNo, "fair " + v.FairValue.StringFixed(2) + " below market " + yes.StringFixed(2)
	default:
		return domain.DirectionSkip, "no meaningful edge"
	}
}

var deskKeywords = map[string][]string{
	"sports":  {"nba", "nfl", "mlb", "nhl", "soccer", "football", "tennis", "ufc", "champions league", "world cup", " vs "},
	"weather": {"temperature", " rain", "snow", "hurricane", "weather", "°f", "°c"},
}

// deskFor routes a market to a specialist desk by category, then keywords.
func deskFor(m domain.Market) string {
	cat := strings.ToLower(m.Category)
	q := strings.ToLower(m.Question)
	for _, desk := range []string{"sports", "weather"} {
		if strings.Contains(cat, desk) {
			return desk
		}
		for _, kw := range deskKeywords[desk] {
			if strings.Contains(q, kw) {
				return desk
			}
		}
	}
	return "general"
}

func hashID(id string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64()
}
