// Package tiers maps cumulative giving to membership tiers.
package tiers

import (
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

// Threshold is one rung: totals at or above Min earn Tier.
type Threshold struct {
	Min  float64
	Tier models.Tier
}

// Ladder is an ordered tier progression. Rungs are listed highest first.
type Ladder struct {
	Name  string
	rungs []Threshold
	base  models.Tier
}

// AcknowledgmentLadder is the canonical ladder used for tier upgrades.
var AcknowledgmentLadder = Ladder{
	Name: "acknowledgment",
	rungs: []Threshold{
		{Min: 10000, Tier: models.TierChampion},
		{Min: 5000, Tier: models.TierPatron},
		{Min: 1000, Tier: models.TierAdvocate},
		{Min: 500, Tier: models.TierSupporter},
		{Min: 100, Tier: models.TierFriend},
	},
	base: models.TierMember,
}

// ClassicLadder is the four-step bronze..platinum progression.
var ClassicLadder = Ladder{
	Name: "classic",
	rungs: []Threshold{
		{Min: 10000, Tier: models.TierPlatinum},
		{Min: 2500, Tier: models.TierGold},
		{Min: 500, Tier: models.TierSilver},
	},
	base: models.TierBronze,
}

// Canonical returns the ladder that governs tier writes.
func Canonical() Ladder {
	return AcknowledgmentLadder
}

// TierFor returns the tier earned by total.
func (l Ladder) TierFor(total float64) models.Tier {
	for _, r := range l.rungs {
		if total >= r.Min {
			return r.Tier
		}
	}
	return l.base
}

// floors orders every tier from both ladders by the lowest total that earns
// it, so tiers compare across vocabularies.
var floors = func() map[models.Tier]float64 {
	m := make(map[models.Tier]float64)
	for _, l := range []Ladder{AcknowledgmentLadder, ClassicLadder} {
		m[l.base] = 0
		for _, r := range l.rungs {
			m[r.Tier] = r.Min
		}
	}
	return m
}()

// Floor returns the lowest total that earns t on either ladder. An unset tier
// sorts below every named tier; unknown tiers report false.
func Floor(t models.Tier) (float64, bool) {
	if t == "" {
		return -1, true
	}
	f, ok := floors[t]
	return f, ok
}

// IsUpgrade reports whether next sits strictly above current. Tiers of equal
// standing on different ladders are not upgrades, and unknown tiers never are.
func (l Ladder) IsUpgrade(current, next models.Tier) bool {
	cur, ok := Floor(current)
	if !ok {
		return false
	}
	nxt, ok := Floor(next)
	if !ok {
		return false
	}
	return nxt > cur
}

// NextThreshold returns the minimum total for the first rung of l above
// current, or false when nothing on l outranks it or current is unknown.
func (l Ladder) NextThreshold(current models.Tier) (float64, bool) {
	floor, ok := Floor(current)
	if !ok {
		return 0, false
	}
	for i := len(l.rungs) - 1; i >= 0; i-- {
		if l.rungs[i].Min > floor {
			return l.rungs[i].Min, true
		}
	}
	return 0, false
}

// YearToDateTotal sums donations made in now's calendar year.
func YearToDateTotal(donations []models.Donation, now time.Time) float64 {
	var total float64
	year := now.Year()
	for _, d := range donations {
		if d.DonatedAt.Year() == year {
			total += d.Amount
		}
	}
	return total
}
