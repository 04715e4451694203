// Package segmentation scores members against weighted rules.
package segmentation

import (
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const (
	highEngagementThreshold = 75
	recentWindow            = 30 * 24 * time.Hour
)

// RuleResult reports whether a rule matched at least one member of the run.
type RuleResult struct {
	Rule    models.SegmentationRule `json:"rule"`
	Matched bool                    `json:"matched"`
}

// MemberScore is one included member with its summed weight.
type MemberScore struct {
	Member   models.Member `json:"member"`
	Weight   float64       `json:"weight"`
	Segments []string      `json:"segments"`
}

type Result struct {
	Members  []models.Member `json:"members"`
	Scores   []MemberScore   `json:"scores"`
	Segments []string        `json:"segments"`
	Score    float64         `json:"score"`
	Rules    []RuleResult    `json:"rules"`
}

// Summary condenses the result for WorkflowResult reporting.
func (r Result) Summary() *models.SegmentationSummary {
	return &models.SegmentationSummary{
		MatchedMembers: len(r.Members),
		Segments:       append([]string(nil), r.Segments...),
		AverageScore:   r.Score,
	}
}

// Evaluator never mutates its inputs.
type Evaluator struct {
	now func() time.Time
}

func NewEvaluator(now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{now: now}
}

// Evaluate includes every member whose matched weight is positive.
func (e *Evaluator) Evaluate(members []models.Member, rules []models.SegmentationRule) Result {
	now := e.now()
	result := Result{
		Members:  []models.Member{},
		Scores:   []MemberScore{},
		Segments: []string{},
		Rules:    make([]RuleResult, len(rules)),
	}
	for i, rule := range rules {
		result.Rules[i] = RuleResult{Rule: rule}
	}

	seen := make(map[string]bool)
	var total float64

	for _, member := range members {
		var weight float64
		var matched []string
		for i, rule := range rules {
			if !matches(member, rule.Condition, now) {
				continue
			}
			weight += rule.Weight
			matched = append(matched, rule.Name)
			result.Rules[i].Matched = true
		}
		if weight <= 0 {
			continue
		}

		result.Members = append(result.Members, member)
		result.Scores = append(result.Scores, MemberScore{Member: member, Weight: weight, Segments: matched})
		total += weight
		for _, name := range matched {
			if !seen[name] {
				seen[name] = true
				result.Segments = append(result.Segments, name)
			}
		}
	}

	if len(result.Members) > 0 {
		result.Score = total / float64(len(result.Members))
	}
	return result
}

// EvaluateRule tests a single rule against a single member.
func (e *Evaluator) EvaluateRule(member models.Member, rule models.SegmentationRule) bool {
	return matches(member, rule.Condition, e.now())
}

func matches(m models.Member, cond models.ConditionKind, now time.Time) bool {
	switch cond {
	case models.ConditionHighEngagement:
		return m.EngagementScore > highEngagementThreshold
	case models.ConditionRecentDonor:
		return m.LastDonationDate != nil && now.Sub(*m.LastDonationDate) <= recentWindow
	case models.ConditionPremiumTier:
		return m.Tier.IsPremium()
	case models.ConditionNewMember:
		return !m.MemberSince.IsZero() && now.Sub(m.MemberSince) <= recentWindow
	default:
		// custom and unknown conditions fail closed
		return false
	}
}
