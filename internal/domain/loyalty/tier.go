// Package loyalty implements the points-and-tiers rewards program.
package loyalty

import "github.com/shopspring/decimal"

// Tier is a loyalty level.
type Tier string

// Tiers in ascending order. TierNone marks the absence of a next tier.
const (
	TierNone   Tier = ""
	TierBronze Tier = "Bronze"
	TierSilver Tier = "Silver"
	TierGold   Tier = "Gold"
)

// Point thresholds at which a tier starts.
const (
	SilverThreshold int64 = 200
	GoldThreshold   int64 = 500
)

var multipliers = map[Tier]decimal.Decimal{
	TierBronze: decimal.RequireFromString("0.10"),
	TierSilver: decimal.RequireFromString("0.125"),
	TierGold:   decimal.RequireFromString("0.15"),
}

func (t Tier) String() string { return string(t) }

// Valid reports whether t is one of the three tiers.
func (t Tier) Valid() bool {
	_, ok := multipliers[t]
	return ok
}

// TierForPoints is the only place a tier is derived. Profiles recompute it
// from their balance after every change.
func TierForPoints(points int64) Tier {
	switch {
	case points >= GoldThreshold:
		return TierGold
	case points >= SilverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// Multiplier returns the points earned per currency unit at tier t. Unknown
// tiers earn at the Bronze rate.
func Multiplier(t Tier) decimal.Decimal {
	if m, ok := multipliers[t]; ok {
		return m
	}
	return multipliers[TierBronze]
}

// Progress describes the distance to the next tier.
type Progress struct {
	Next         Tier
	PointsNeeded int64
}

// ProgressToNextTier returns the next tier and the points missing to reach
// it. Gold has no next tier.
func ProgressToNextTier(points int64) Progress {
	switch {
	case points >= GoldThreshold:
		return Progress{Next: TierNone}
	case points >= SilverThreshold:
		return Progress{Next: TierGold, PointsNeeded: GoldThreshold - points}
	default:
		return Progress{Next: TierSilver, PointsNeeded: SilverThreshold - max(points, 0)}
	}
}
