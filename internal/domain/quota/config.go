package quota

import "github.com/popgraph/server/internal/model"

// DefaultKeyPrefix namespaces daily counters in the store.
const DefaultKeyPrefix = "popgraph:rate_limit:"

// Config holds ledger configuration.
type Config struct {
	KeyPrefix string
	// Limits maps a tier to its daily cap. model.UnlimitedQuota disables the cap.
	Limits map[model.Tier]int
	// FailOpen admits requests when no store is reachable.
	FailOpen bool
}

// DefaultConfig returns the default tier table.
func DefaultConfig() *Config {
	return &Config{
		KeyPrefix: DefaultKeyPrefix,
		Limits: map[model.Tier]int{
			model.TierFree:         5,
			model.TierBasic:        100,
			model.TierProfessional: model.UnlimitedQuota,
		},
	}
}

// LimitsFromNames converts a name-keyed limit table, ignoring unknown tiers.
func LimitsFromNames(in map[string]int) map[model.Tier]int {
	out := make(map[model.Tier]int, len(in))
	for name, limit := range in {
		tier := model.Tier(name)
		if model.ParseTier(name) != tier {
			continue
		}
		out[tier] = limit
	}
	return out
}
