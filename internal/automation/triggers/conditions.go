// Package triggers decides whether a behavioral trigger may fire for a member.
package triggers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

// ConditionKey is a trigger condition name. Keys outside the known set are
// treated as satisfied unless the evaluator is strict.
type ConditionKey string

const (
	KeyMinEngagementScore    ConditionKey = "min_engagement_score"
	KeyTier                  ConditionKey = "tier"
	KeyDaysSinceLastDonation ConditionKey = "days_since_last_donation"
)

// Context keys that override member attributes during evaluation.
const (
	ContextEngagementScore  = "engagement_score"
	ContextTier             = "tier"
	ContextLastDonationDate = "last_donation_date"
)

type Evaluator struct {
	now           func() time.Time
	strictUnknown bool
}

type Option func(*Evaluator)

// WithStrictUnknown makes unknown condition keys fail instead of pass.
func WithStrictUnknown() Option {
	return func(e *Evaluator) { e.strictUnknown = true }
}

func NewEvaluator(now func() time.Time, opts ...Option) *Evaluator {
	if now == nil {
		now = time.Now
	}
	e := &Evaluator{now: now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateConditions returns true only if every condition holds. An empty
// condition map always holds.
func (e *Evaluator) EvaluateConditions(member models.Member, conditions map[string]interface{}, evalCtx map[string]interface{}) bool {
	subject := applyContext(member, evalCtx)
	now := e.now()

	for key, value := range conditions {
		if !e.holds(subject, ConditionKey(key), value, now) {
			return false
		}
	}
	return true
}

func (e *Evaluator) holds(m models.Member, key ConditionKey, value interface{}, now time.Time) bool {
	switch key {
	case KeyMinEngagementScore:
		threshold, ok := toFloat(value)
		return ok && float64(m.EngagementScore) >= threshold
	case KeyTier:
		tier, ok := value.(string)
		return ok && string(m.Tier) == tier
	case KeyDaysSinceLastDonation:
		if m.LastDonationDate == nil {
			return false
		}
		days, ok := toFloat(value)
		if !ok {
			return false
		}
		return now.Sub(*m.LastDonationDate).Hours()/24 >= days
	default:
		return !e.strictUnknown
	}
}

func applyContext(m models.Member, evalCtx map[string]interface{}) models.Member {
	if len(evalCtx) == 0 {
		return m
	}
	if v, ok := toFloat(evalCtx[ContextEngagementScore]); ok {
		m.EngagementScore = models.ClampEngagement(int(v))
	}
	if v, ok := evalCtx[ContextTier].(string); ok && v != "" {
		m.Tier = models.Tier(v)
	}
	switch v := evalCtx[ContextLastDonationDate].(type) {
	case time.Time:
		m.LastDonationDate = &v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			m.LastDonationDate = &t
		}
	}
	return m
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
