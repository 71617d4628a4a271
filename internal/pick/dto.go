// Package pick reshapes a raw feed Record into a Pick: the soft leg as
// primary subject, the sharp leg preserved as counterpart metadata.
package pick

import (
	"github.com/fortuna-bet/retador/internal/corerr"
	"github.com/fortuna-bet/retador/pkg/contracts"
	"github.com/fortuna-bet/retador/pkg/models"
)

// Build reshapes rec into a Pick per the configured sharp hierarchy and
// target/pairing rules, or returns an *corerr.InvalidRecord.
func Build(rec models.Record, cfg contracts.BookmakerConfig) (models.Pick, error) {
	sharpIdx, softIdx, ok := resolveRoles(rec, cfg)
	if !ok {
		return models.Pick{}, &corerr.InvalidRecord{RecordID: rec.ID, Reason: "no eligible sharp/soft pairing"}
	}

	sharpLeg := rec.Legs[sharpIdx]
	softLeg := rec.Legs[softIdx]

	if !cfg.IsTarget(softLeg.Bookmaker) {
		return models.Pick{}, &corerr.InvalidRecord{RecordID: rec.ID, Reason: "soft leg bookmaker not in target set"}
	}
	if !cfg.SharpAllowed(softLeg.Bookmaker, sharpLeg.Bookmaker) {
		return models.Pick{}, &corerr.InvalidRecord{RecordID: rec.ID, Reason: "sharp not allowed for this soft target"}
	}

	return models.Pick{
		RecordID:  rec.ID,
		Profit:    rec.Profit,
		SoftLeg:   softLeg,
		SharpLeg:  sharpLeg,
		SharpID:   sharpLeg.Bookmaker,
		ChannelID: cfg.Channels[softLeg.Bookmaker],
	}, nil
}

// resolveRoles scans both legs against the configured sharp hierarchy in
// priority order and returns the index of the first hierarchy entry found,
// matching the reference source's left-to-right, hierarchy-first scan.
func resolveRoles(rec models.Record, cfg contracts.BookmakerConfig) (sharpIdx, softIdx int, ok bool) {
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

	sharpIdx = bestLeg
	softIdx = 1 - bestLeg
	return sharpIdx, softIdx, true
}
