// Package calculation provides the per-sharp stake-tier and min-odds
// calculators selected by the Factory, mirroring the Strategy-by-sharp
// design the reference system's calculators module describes.
package calculation

import (
	"math"

	"github.com/fortuna-bet/retador/pkg/contracts"
	"github.com/fortuna-bet/retador/pkg/models"
)

const (
	defaultMinProfit = -1.0
	defaultMaxProfit = 25.0
	targetProfit     = -1.0 // Pinnacle's denominator constant, NOT a configurable margin
)

// Pinnacle is the reference calculator: its odds approximate the true
// market, so min-odds and stake tier are derived directly from them.
//
// The min-odds formula is 1 / (1.01 - 1/s). The legacy buggy form
// 1/(1.04 - 1/s - 0.01) must never be used.
type Pinnacle struct {
	MinProfit float64
	MaxProfit float64
}

var _ contracts.Calculator = (*Pinnacle)(nil)

// NewPinnacle builds the reference calculator with the documented default
// profit bounds.
func NewPinnacle() *Pinnacle {
	return &Pinnacle{MinProfit: defaultMinProfit, MaxProfit: defaultMaxProfit}
}

// Stake maps profit to an emoji-coded tier. Profit outside [MinProfit,
// MaxProfit] is rejected (ok=false, no tier).
func (p *Pinnacle) Stake(profit float64) (models.StakeTier, bool) {
	if profit < p.MinProfit || profit > p.MaxProfit {
		return "", false
	}
	switch {
	case profit <= -0.5:
		return models.StakeLow, true
	case profit <= 1.5:
		return models.StakeMediumLow, true
	case profit <= 4:
		return models.StakeMediumHigh, true
	default:
		return models.StakeHigh, true
	}
}

// MinOdds returns the minimum acceptable soft-leg odds for sharp odds s,
// rounded to two decimals. If the denominator is non-positive (s at or
// below ~0.990, i.e. 1/1.01), returns a sentinel max-odds value instead of a
// division blow-up.
func (p *Pinnacle) MinOdds(sharpOdds float64) float64 {
	denominator := 1 - targetProfit/100 - 1/sharpOdds
	// targetProfit is -1.0, so this is exactly 1.01 - 1/s.
	if denominator <= 0 {
		return 1000.0 // sentinel max-odds value, matches §3 leg-odds ceiling
	}
	return math.Round((1/denominator)*100) / 100
}
