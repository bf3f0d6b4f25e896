package contracts

import "time"

// Universe tiers
const (
	TierInstitutional = "tier1" // highest quote volume, institutional grade
	TierRetail        = "tier2"
)

// Universe is the tiered set of tradable symbols available to a user
type Universe struct {
	AsOf  time.Time `json:"as_of"`
	Tier1 []string  `json:"tier1"`
	Tier2 []string  `json:"tier2"`
}

// Symbols returns all symbols, tier1 first
func (u *Universe) Symbols() []string {
	out := make([]string, 0, len(u.Tier1)+len(u.Tier2))
	out = append(out, u.Tier1...)
	out = append(out, u.Tier2...)
	return out
}

// Size returns the total symbol count across tiers
func (u *Universe) Size() int {
	return len(u.Tier1) + len(u.Tier2)
}

// Tier returns the tier label for a symbol, or empty when unknown
func (u *Universe) Tier(symbol string) string {
	for _, s := range u.Tier1 {
		if s == symbol {
			return TierInstitutional
		}
	}
	for _, s := range u.Tier2 {
		if s == symbol {
			return TierRetail
		}
	}
	return ""
}
