package sizing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/sizing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decEq(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestKelly_FullKellyEvenOdds(t *testing.T) {
	res := sizing.Kelly(sizing.KellyInput{
		Bankroll:    dec("100"),
		Probability: dec("0.65"),
		Price:       dec("0.50"),
		Fraction:    dec("1.0"),
		MaxPct:      dec("1.0"),
	})

	decEq(t, "0.30", res.FullKelly)
	decEq(t, "0.30", res.Fraction)
	decEq(t, "30", res.BetSize)
	assert.Equal(t, sizing.RiskHigh, res.RiskLevel)
	// EV = 0.65*30*1 - 0.35*30
	decEq(t, "9", res.ExpectedValue)
}

func TestKelly_NoEdgeIsZeroStake(t *testing.T) {
	res := sizing.Kelly(sizing.KellyInput{
		Bankroll:    dec("100"),
		Probability: dec("0.40"),
		Price:       dec("0.50"),
		Fraction:    dec("0.4"),
		MaxPct:      dec("0.08"),
	})
	assert.True(t, res.IsZero())
	assert.True(t, res.FullKelly.IsNegative())
	assert.Equal(t, sizing.RiskNone, res.RiskLevel)
}

func TestKelly_InvalidInputs(t *testing.T) {
	cases := []sizing.KellyInput{
		{Bankroll: dec("0"), Probability: dec("0.6"), Price: dec("0.5")},
		{Bankroll: dec("100"), Probability: dec("0"), Price: dec("0.5")},
		{Bankroll: dec("100"), Probability: dec("1"), Price: dec("0.5")},
		{Bankroll: dec("100"), Probability: dec("0.6"), Price: dec("0")},
		{Bankroll: dec("100"), Probability: dec("0.6"), Price: dec("1")},
	}
	for _, in := range cases {
		in.Fraction = dec("1")
		in.MaxPct = dec("1")
		res := sizing.Kelly(in)
		assert.True(t, res.IsZero())
		assert.Equal(t, sizing.RiskNone, res.RiskLevel)
	}
}

func TestKelly_CappedAtMaxPct(t *testing.T) {
	res := sizing.Kelly(sizing.KellyInput{
		Bankroll:    dec("30"),
		Probability: dec("0.65"),
		Price:       dec("0.50"),
		Fraction:    dec("0.40"),
		MaxPct:      dec("0.08"),
	})
	// 0.30 * 0.40 = 0.12 > 0.08 cap
	decEq(t, "0.12", res.AdjustedKelly)
	decEq(t, "0.08", res.Fraction)
	decEq(t, "2.4", res.BetSize)
	assert.Equal(t, sizing.RiskHigh, res.RiskLevel)
}

func TestKelly_BelowMinimum(t *testing.T) {
	res := sizing.Kelly(sizing.KellyInput{
		Bankroll:    dec("1"),
		Probability: dec("0.55"),
		Price:       dec("0.50"),
		Fraction:    dec("0.40"),
		MaxPct:      dec("0.08"),
	})
	assert.True(t, res.IsZero())
	assert.Equal(t, sizing.RiskBelowMin, res.RiskLevel)
}

func TestKelly_RiskLevels(t *testing.T) {
	base := sizing.KellyInput{
		Bankroll:    dec("1000"),
		Probability: dec("0.65"),
		Price:       dec("0.50"),
		Fraction:    dec("1"),
	}

	low := base
	low.MaxPct = dec("0.015")
	assert.Equal(t, sizing.RiskLow, sizing.Kelly(low).RiskLevel)

	mid := base
	mid.MaxPct = dec("0.025")
	assert.Equal(t, sizing.RiskMedium, sizing.Kelly(mid).RiskLevel)
}

func TestKelly_SurvivalCapTakesMinimum(t *testing.T) {
	in := sizing.KellyInput{
		Bankroll:     dec("300"),
		Probability:  dec("0.65"),
		Price:        dec("0.50"),
		Fraction:     dec("1"),
		MaxPct:       dec("0.08"),
		BaseBankroll: dec("100"),
	}
	// growth 3x → scale 2 → cap 0.16
	decEq(t, "0.16", sizing.Kelly(in).Fraction)

	in.SurvivalCap = decimal.NewNullDecimal(dec("0.05"))
	decEq(t, "0.05", sizing.Kelly(in).Fraction)
	decEq(t, "15", sizing.Kelly(in).BetSize)

	// a survival cap above the scaled cap changes nothing
	in.SurvivalCap = decimal.NewNullDecimal(dec("0.50"))
	decEq(t, "0.16", sizing.Kelly(in).Fraction)
}

func TestScaledCap(t *testing.T) {
	decEq(t, "0.08", sizing.ScaledCap(dec("0.08"), dec("50"), dec("100")))
	decEq(t, "0.08", sizing.ScaledCap(dec("0.08"), dec("100"), dec("100")))
	decEq(t, "0.12", sizing.ScaledCap(dec("0.08"), dec("200"), dec("100")))
	decEq(t, "0.80", sizing.ScaledCap(dec("0.50"), dec("1000"), dec("100")))
	decEq(t, "0.08", sizing.ScaledCap(dec("0.08"), dec("1000"), decimal.Zero))
}

func TestKelly_NoSideUsesComplement(t *testing.T) {
	yesFair, yesPrice := dec("0.30"), dec("0.50")
	res := sizing.Kelly(sizing.KellyInput{
		Bankroll:    dec("100"),
		Probability: domain.DirectionNo.SidePrice(yesFair),
		Price:       domain.DirectionNo.SidePrice(yesPrice),
		Fraction:    dec("1"),
		MaxPct:      dec("1"),
	})
	require.False(t, res.IsZero())
	decEq(t, "0.4", res.FullKelly)
}
