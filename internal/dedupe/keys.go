package dedupe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fortuna-bet/retador/pkg/models"
)

// oppositeMarkets mirrors the legacy system's static opposite-market table:
// alerting a pick on one side of a market must also suppress a later record
// that surfaces the other side of the same bet.
var oppositeMarkets = map[string][]string{
	"win1":          {"win2"},
	"win2":          {"win1"},
	"over":          {"under"},
	"under":         {"over"},
	"ah1":           {"ah2"},
	"ah2":           {"ah1"},
	"odd":           {"even"},
	"even":          {"odd"},
	"yes":           {"no"},
	"no":            {"yes"},
	"_1x":           {"_x2", "_12"},
	"_x2":           {"_1x", "_12"},
	"_12":           {"_1x", "_x2"},
	"winonly1":      {"winonly2"},
	"winonly2":      {"winonly1"},
	"win1retx":      {"win2retx"},
	"win2retx":      {"win1retx"},
	"clean_sheet_1": {"clean_sheet_2"},
	"clean_sheet_2": {"clean_sheet_1"},
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// BuildKey builds the canonical dedup key for a (leg, market, soft) tuple:
// {team1}:{team2}:{event_time_ms}:{market}:{variety}:{soft_bookmaker}.
func BuildKey(teams [2]string, eventTimeMs int64, market, variety, softBookmaker string) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		normalize(teams[0]),
		normalize(teams[1]),
		strconv.FormatInt(eventTimeMs, 10),
		normalize(market),
		normalize(variety),
		normalize(softBookmaker),
	)
}

// OppositeKeys returns the dedup keys for every opposite market of the given
// one, or nil if the market has no recognized opposite.
func OppositeKeys(teams [2]string, eventTimeMs int64, market, variety, softBookmaker string) []string {
	opposites, ok := oppositeMarkets[normalize(market)]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(opposites))
	for _, opp := range opposites {
		keys = append(keys, BuildKey(teams, eventTimeMs, opp, variety, softBookmaker))
	}
	return keys
}

// KeysForPick computes the primary dedup key and all opposite keys for a
// pick's soft leg.
func KeysForPick(p models.Pick) (key string, opposites []string) {
	leg := p.SoftLeg
	key = BuildKey(leg.Teams, leg.EventTimeMs, leg.Market, leg.Variety, leg.Bookmaker)
	opposites = OppositeKeys(leg.Teams, leg.EventTimeMs, leg.Market, leg.Variety, leg.Bookmaker)
	return key, opposites
}
