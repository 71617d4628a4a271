// Package validation runs a fail-fast chain of cheap-CPU-before-I/O checks
// against a candidate record, mirroring the teacher's per-stage validator
// seam (pkg/contracts.Validator) rather than one monolithic predicate.
package validation

import (
	"context"
	"time"

	"github.com/fortuna-bet/retador/pkg/contracts"
	"github.com/fortuna-bet/retador/pkg/models"
)

// Result carries the outcome of running a Chain against one record.
type Result struct {
	OK       bool
	Reason   string
	FailedAt string
}

// Chain runs its Validators in order, stopping at the first failure.
type Chain struct {
	validators []contracts.Validator
}

// NewDefaultChain builds the chain in the mandated order: cheap CPU checks
// first, the duplicate (I/O) check always last.
func NewDefaultChain(minOdds, maxOdds, minProfit, maxProfit float64, minEventTime time.Duration, generativeRejectThreshold int, dedupe contracts.DedupeStore) *Chain {
	return New(
		NewOddsValidator(minOdds, maxOdds),
		NewProfitValidator(minProfit, maxProfit),
		NewTimeValidator(minEventTime),
		NewRulesValidator(),
		NewGenerativeValidator(generativeRejectThreshold),
		NewDuplicateValidator(dedupe),
	)
}

// New builds a Chain from explicit validators, in the given order.
func New(validators ...contracts.Validator) *Chain {
	return &Chain{validators: validators}
}

// Run executes every validator against rec in order, stopping at the first
// rejection.
func (c *Chain) Run(ctx context.Context, rec models.Record, cfg contracts.BookmakerConfig) Result {
	for _, v := range c.validators {
		if ok, reason := v.Validate(ctx, rec, cfg); !ok {
			return Result{OK: false, Reason: reason, FailedAt: v.Name()}
		}
	}
	return Result{OK: true}
}
