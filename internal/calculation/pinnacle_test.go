package calculation

import (
	"testing"

	"github.com/fortuna-bet/retador/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestMinOdds_ReferenceTable(t *testing.T) {
	p := NewPinnacle()
	cases := []struct {
		sharpOdds float64
		want      float64
	}{
		{1.50, 2.92},
		{1.80, 2.20},
		{2.00, 1.96},
		{2.05, 1.92},
		{2.50, 1.64},
		{3.00, 1.48},
	}
	for _, c := range cases {
		got := p.MinOdds(c.sharpOdds)
		assert.InDelta(t, c.want, got, 0.05, "sharp=%v", c.sharpOdds)
	}
}

func TestMinOdds_NonPositiveDenominator_ReturnsSentinel(t *testing.T) {
	p := NewPinnacle()
	// s = 0.99 makes 1/s ~ 1.0101, pushing 1.01 - 1/s <= 0.
	got := p.MinOdds(0.99)
	assert.Equal(t, 1000.0, got)
}

func TestStake_Boundaries(t *testing.T) {
	p := NewPinnacle()

	tier, ok := p.Stake(-1.0)
	assert.True(t, ok)
	assert.Equal(t, models.StakeLow, tier)

	tier, ok = p.Stake(25.0)
	assert.True(t, ok)
	assert.Equal(t, models.StakeHigh, tier)

	_, ok = p.Stake(-1.01)
	assert.False(t, ok)

	_, ok = p.Stake(25.01)
	assert.False(t, ok)
}

func TestStake_TierRanges(t *testing.T) {
	p := NewPinnacle()

	tier, _ := p.Stake(-0.5)
	assert.Equal(t, models.StakeLow, tier)

	tier, _ = p.Stake(-0.49)
	assert.Equal(t, models.StakeMediumLow, tier)

	tier, _ = p.Stake(1.5)
	assert.Equal(t, models.StakeMediumLow, tier)

	tier, _ = p.Stake(1.51)
	assert.Equal(t, models.StakeMediumHigh, tier)

	tier, _ = p.Stake(4.0)
	assert.Equal(t, models.StakeMediumHigh, tier)

	tier, _ = p.Stake(4.01)
	assert.Equal(t, models.StakeHigh, tier)
}

func TestScenario_HappyPath_PinnacleRetabet(t *testing.T) {
	p := NewPinnacle()
	tier, ok := p.Stake(2.5)
	assert.True(t, ok)
	assert.Equal(t, models.StakeMediumHigh, tier)

	minOdds := p.MinOdds(2.10)
	assert.InDelta(t, 1.87, minOdds, 0.01) // 1/(1.01 - 1/2.10) = 1.873
}
