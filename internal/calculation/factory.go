package calculation

import (
	"strings"
	"sync"

	"github.com/fortuna-bet/retador/pkg/contracts"
)

// Factory selects a Calculator by normalized sharp bookmaker id, defaulting
// unknown sharps to Pinnacle as an intentional safety net rather than
// failing the pick outright.
type Factory struct {
	mu          sync.RWMutex
	calculators map[string]contracts.Calculator
	fallback    contracts.Calculator
}

// NewFactory builds a factory pre-registered with the Pinnacle reference
// calculator under its own id and as the fallback for any unmapped sharp.
func NewFactory() *Factory {
	pinnacle := NewPinnacle()
	return &Factory{
		calculators: map[string]contracts.Calculator{
			"pinnaclesports": pinnacle,
		},
		fallback: pinnacle,
	}
}

// Register associates a sharp bookmaker id with a calculator. Later
// registrations for the same id replace earlier ones.
func (f *Factory) Register(sharpID string, calc contracts.Calculator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calculators[strings.ToLower(sharpID)] = calc
}

// For returns the calculator registered for sharpID, or the Pinnacle
// fallback if none is registered.
func (f *Factory) For(sharpID string) contracts.Calculator {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if calc, ok := f.calculators[strings.ToLower(sharpID)]; ok {
		return calc
	}
	return f.fallback
}
