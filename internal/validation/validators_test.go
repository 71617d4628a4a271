package validation

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/fortuna-bet/retador/pkg/contracts"
	"github.com/fortuna-bet/retador/pkg/models"
	"github.com/stretchr/testify/assert"
)

func baseRecord() models.Record {
	future := time.Now().Add(2 * time.Hour).UnixMilli()
	return models.Record{
		ID:     "rec1",
		Profit: 2.5,
		Legs: [2]models.Leg{
			{Bookmaker: "pinnaclesports", Odds: 2.10, Market: "over", Variety: "2.5", EventTimeMs: future, Teams: [2]string{"Fnatic", "G2"}},
			{Bookmaker: "retabet_apuestas", Odds: 2.05, Market: "under", Variety: "2.5", EventTimeMs: future, Teams: [2]string{"Fnatic", "G2"}},
		},
	}
}

func TestOddsValidator_Boundaries(t *testing.T) {
	v := NewOddsValidator(1.10, 9.99)
	cfg := contracts.BookmakerConfig{}

	rec := baseRecord()
	rec.Legs[0].Odds = 1.10
	rec.Legs[1].Odds = 9.99
	ok, _ := v.Validate(context.Background(), rec, cfg)
	assert.True(t, ok)

	rec.Legs[0].Odds = 1.09
	ok, _ = v.Validate(context.Background(), rec, cfg)
	assert.False(t, ok)
}

func TestProfitValidator_Boundaries(t *testing.T) {
	v := NewProfitValidator(-1.0, 25.0)
	cfg := contracts.BookmakerConfig{}

	rec := baseRecord()
	rec.Profit = -1.0
	ok, _ := v.Validate(context.Background(), rec, cfg)
	assert.True(t, ok)

	rec.Profit = 25.0
	ok, _ = v.Validate(context.Background(), rec, cfg)
	assert.True(t, ok)

	rec.Profit = -1.01
	ok, _ = v.Validate(context.Background(), rec, cfg)
	assert.False(t, ok)

	rec.Profit = 25.01
	ok, _ = v.Validate(context.Background(), rec, cfg)
	assert.False(t, ok)
}

func TestTimeValidator_Boundary(t *testing.T) {
	v := NewTimeValidator(time.Hour)
	cfg := contracts.BookmakerConfig{}

	rec := baseRecord()
	rec.Legs[0].EventTimeMs = time.Now().Add(time.Hour + time.Minute).UnixMilli()
	ok, _ := v.Validate(context.Background(), rec, cfg)
	assert.True(t, ok)

	rec.Legs[0].EventTimeMs = time.Now().Add(time.Minute).UnixMilli()
	ok, _ = v.Validate(context.Background(), rec, cfg)
	assert.False(t, ok)
}

func TestRulesValidator_RejectsNonEmptyDifferentRules(t *testing.T) {
	v := NewRulesValidator()
	cfg := contracts.BookmakerConfig{}

	rec := baseRecord()
	rec.Legs[1].DifferentRules = "handicap mismatch"
	ok, _ := v.Validate(context.Background(), rec, cfg)
	assert.False(t, ok)
}

func TestGenerativeValidator_RejectsAtThreshold(t *testing.T) {
	v := NewGenerativeValidator(2)
	cfg := contracts.BookmakerConfig{}

	rec := baseRecord()
	rec.Legs[0].Generative = 1
	ok, _ := v.Validate(context.Background(), rec, cfg)
	assert.True(t, ok)

	rec.Legs[0].Generative = 2
	ok, _ = v.Validate(context.Background(), rec, cfg)
	assert.False(t, ok)
}

type fakeDedupeStore struct {
	existing map[string]bool
}

func (f *fakeDedupeStore) Exists(_ context.Context, key string) bool { return f.existing[key] }

func (f *fakeDedupeStore) ExistsAny(_ context.Context, keys []string) bool {
	for _, k := range keys {
		if f.existing[k] {
			return true
		}
	}
	return false
}

func (f *fakeDedupeStore) Mark(_ context.Context, _ models.Pick, _ time.Duration) bool { return true }

func (f *fakeDedupeStore) GetCursor(_ context.Context) (models.CursorState, error) {
	return models.CursorState{}, nil
}

func (f *fakeDedupeStore) SetCursor(_ context.Context, _ models.CursorState) error { return nil }

func testBookmakerConfig() contracts.BookmakerConfig {
	return contracts.BookmakerConfig{
		SharpHierarchy: []string{"pinnaclesports"},
		Targets:        map[string]bool{"retabet_apuestas": true},
		Channels:       map[string]int64{"retabet_apuestas": -1},
	}
}

func TestDuplicateValidator_RejectsExistingKey(t *testing.T) {
	rec := baseRecord()
	key := "fnatic:g2:" + strconv.FormatInt(rec.Legs[1].EventTimeMs, 10) + ":under:2.5:retabet_apuestas"
	store := &fakeDedupeStore{existing: map[string]bool{key: true}}
	v := NewDuplicateValidator(store)

	ok, _ := v.Validate(context.Background(), rec, testBookmakerConfig())
	assert.False(t, ok)
}

func TestDuplicateValidator_RejectsOppositeKey(t *testing.T) {
	rec := baseRecord()
	oppKey := "fnatic:g2:" + strconv.FormatInt(rec.Legs[1].EventTimeMs, 10) + ":over:2.5:retabet_apuestas"
	store := &fakeDedupeStore{existing: map[string]bool{oppKey: true}}
	v := NewDuplicateValidator(store)

	ok, _ := v.Validate(context.Background(), rec, testBookmakerConfig())
	assert.False(t, ok)
}

func TestDuplicateValidator_AllowsFreshKey(t *testing.T) {
	rec := baseRecord()
	store := &fakeDedupeStore{existing: map[string]bool{}}
	v := NewDuplicateValidator(store)

	ok, _ := v.Validate(context.Background(), rec, testBookmakerConfig())
	assert.True(t, ok)
}

func TestChain_FailsFastOnFirstRejection(t *testing.T) {
	store := &fakeDedupeStore{existing: map[string]bool{}}
	chain := NewDefaultChain(1.10, 9.99, -1.0, 25.0, time.Hour, 2, store)

	rec := baseRecord()
	rec.Legs[0].Odds = 1.0 // fails odds, the first validator

	res := chain.Run(context.Background(), rec, testBookmakerConfig())
	assert.False(t, res.OK)
	assert.Equal(t, "odds", res.FailedAt)
}

func TestChain_PassesAllValidators(t *testing.T) {
	store := &fakeDedupeStore{existing: map[string]bool{}}
	chain := NewDefaultChain(1.10, 9.99, -1.0, 25.0, time.Hour, 2, store)

	rec := baseRecord()
	res := chain.Run(context.Background(), rec, testBookmakerConfig())
	assert.True(t, res.OK)
}
