package config

import "github.com/fortuna-bet/retador/pkg/contracts"

// DefaultBookmakerConfig returns the declarative sharp/target/channel table.
// Bookmaker roles, channel ids and pairing restrictions are code, not
// environment, per §6: "configured in code (declarative tables)".
func DefaultBookmakerConfig() contracts.BookmakerConfig {
	return contracts.BookmakerConfig{
		SharpHierarchy: []string{
			"pinnaclesports",
		},
		Targets: map[string]bool{
			"retabet_apuestas": true,
			"yaass_casino":     true,
			"bet365":           true,
			"sports_betway":    true,
			"sports_bwin":      true,
			"versus_es":        true,
			"pokerstars_es":    true,
		},
		Channels: map[string]int64{
			"retabet_apuestas": -1001000000001,
			"yaass_casino":     -1001000000002,
			"bet365":           -1001000000003,
			"sports_betway":    -1001000000004,
			"sports_bwin":      -1001000000005,
			"versus_es":        -1001000000006,
			"pokerstars_es":    -1001000000007,
		},
		AllowedSharps: map[string][]string{
			// empty/omitted entries mean "any configured sharp"
		},
		Sports: []string{
			"soccer",
			"basketball",
			"tennis",
			"esports_lol",
			"esports_csgo",
			"esports_dota2",
		},
	}
}
