package calculation

import (
	"testing"

	"github.com/fortuna-bet/retador/pkg/models"
	"github.com/stretchr/testify/assert"
)

type fakeCalculator struct{}

func (fakeCalculator) Stake(profit float64) (models.StakeTier, bool) {
	return models.StakeHigh, true
}

func (fakeCalculator) MinOdds(sharpOdds float64) float64 {
	return 9.99
}

func TestFactory_DefaultsUnknownSharpToPinnacle(t *testing.T) {
	f := NewFactory()
	calc := f.For("some_unmapped_sharp")
	_, ok := calc.(*Pinnacle)
	assert.True(t, ok)
}

func TestFactory_PinnacleRegisteredByID(t *testing.T) {
	f := NewFactory()
	calc := f.For("pinnaclesports")
	_, ok := calc.(*Pinnacle)
	assert.True(t, ok)
}

func TestFactory_RegisterOverridesCalculator(t *testing.T) {
	f := NewFactory()
	f.Register("customsharp", fakeCalculator{})
	calc := f.For("CustomSharp")
	tier, ok := calc.Stake(0)
	assert.True(t, ok)
	assert.Equal(t, models.StakeHigh, tier)
}
