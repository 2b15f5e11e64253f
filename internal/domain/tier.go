package domain

import "strings"

// Tier is a subscription class that selects a daily extraction quota.
type Tier string

const (
	TierTrial Tier = "trial"
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
)

// ParseTier normalizes a plan string supplied by the entitlement collaborator.
// It does not reject unknown values; quota lookup decides how to treat them.
func ParseTier(s string) Tier {
	return Tier(strings.ToLower(strings.TrimSpace(s)))
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierTrial, TierFree, TierPro:
		return true
	}
	return false
}
