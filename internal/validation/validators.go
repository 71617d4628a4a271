package validation

import (
	"context"
	"time"

	"github.com/fortuna-bet/retador/internal/dedupe"
	"github.com/fortuna-bet/retador/pkg/contracts"
	"github.com/fortuna-bet/retador/pkg/models"
)

// OddsValidator rejects records with any leg's decimal odds outside
// [min, max].
type OddsValidator struct {
	Min, Max float64
}

func NewOddsValidator(min, max float64) *OddsValidator { return &OddsValidator{Min: min, Max: max} }

func (v *OddsValidator) Name() string { return "odds" }

func (v *OddsValidator) Validate(_ context.Context, rec models.Record, _ contracts.BookmakerConfig) (bool, string) {
	for _, leg := range rec.Legs {
		if leg.Odds < v.Min || leg.Odds > v.Max {
			return false, "odds out of range"
		}
	}
	return true, ""
}

// ProfitValidator rejects records whose profit percentage falls outside
// [min, max].
type ProfitValidator struct {
	Min, Max float64
}

func NewProfitValidator(min, max float64) *ProfitValidator {
	return &ProfitValidator{Min: min, Max: max}
}

func (v *ProfitValidator) Name() string { return "profit" }

func (v *ProfitValidator) Validate(_ context.Context, rec models.Record, _ contracts.BookmakerConfig) (bool, string) {
	if rec.Profit < v.Min || rec.Profit > v.Max {
		return false, "profit out of range"
	}
	return true, ""
}

// TimeValidator rejects records whose event starts too soon.
type TimeValidator struct {
	MinEventTime time.Duration
}

func NewTimeValidator(minEventTime time.Duration) *TimeValidator {
	return &TimeValidator{MinEventTime: minEventTime}
}

func (v *TimeValidator) Name() string { return "time" }

func (v *TimeValidator) Validate(_ context.Context, rec models.Record, _ contracts.BookmakerConfig) (bool, string) {
	eventTime := time.UnixMilli(rec.Legs[0].EventTimeMs)
	if eventTime.Sub(time.Now()) < v.MinEventTime {
		return false, "event starts too soon"
	}
	return true, ""
}

// RulesValidator is a safety net rejecting records the feed marked as
// having different sporting rules between legs.
type RulesValidator struct{}

func NewRulesValidator() *RulesValidator { return &RulesValidator{} }

func (v *RulesValidator) Name() string { return "rules" }

func (v *RulesValidator) Validate(_ context.Context, rec models.Record, _ contracts.BookmakerConfig) (bool, string) {
	for _, leg := range rec.Legs {
		if leg.DifferentRules != "" {
			return false, "different sporting rules"
		}
	}
	return true, ""
}

// GenerativeValidator rejects records with a leg whose generativeness
// marker meets or exceeds the configured threshold.
type GenerativeValidator struct {
	RejectThreshold int
}

func NewGenerativeValidator(threshold int) *GenerativeValidator {
	return &GenerativeValidator{RejectThreshold: threshold}
}

func (v *GenerativeValidator) Name() string { return "generative" }

func (v *GenerativeValidator) Validate(_ context.Context, rec models.Record, _ contracts.BookmakerConfig) (bool, string) {
	for _, leg := range rec.Legs {
		if leg.Generative >= v.RejectThreshold {
			return false, "generative market"
		}
	}
	return true, ""
}

// DuplicateValidator is the sole I/O validator in the chain: it rejects
// records whose dedup key or any opposite-market key already exists.
type DuplicateValidator struct {
	Store contracts.DedupeStore
}

func NewDuplicateValidator(store contracts.DedupeStore) *DuplicateValidator {
	return &DuplicateValidator{Store: store}
}

func (v *DuplicateValidator) Name() string { return "duplicate" }

func (v *DuplicateValidator) Validate(ctx context.Context, rec models.Record, cfg contracts.BookmakerConfig) (bool, string) {
	sharpIdx, softIdx, ok := resolveRolesForDedupe(rec, cfg)
	if !ok {
		return true, "" // upstream DTO construction will have already rejected this
	}
	soft := rec.Legs[softIdx]
	sharp := rec.Legs[sharpIdx]

	key, opposites := dedupe.KeysForPick(models.Pick{
		SoftLeg:  soft,
		SharpLeg: sharp,
	})

	if v.Store.Exists(ctx, key) {
		return false, "duplicate pick"
	}
	if v.Store.ExistsAny(ctx, opposites) {
		return false, "duplicate opposite-market pick"
	}
	return true, ""
}

func resolveRolesForDedupe(rec models.Record, cfg contracts.BookmakerConfig) (sharpIdx, softIdx int, ok bool) {
	bestHierarchyIdx := -1
	bestLeg := -1
	for i, leg := range rec.Legs {
		if hi := cfg.HierarchyIndex(leg.Bookmaker); hi >= 0 {
			if bestLeg == -1 || hi < bestHierarchyIdx {
				bestHierarchyIdx = hi
				bestLeg = i
			}
		}
	}
	if bestLeg == -1 {
		return 0, 0, false
	}
	return bestLeg, 1 - bestLeg, true
}
