package domain

import (
	"time"

	"github.com/google/uuid"
)

// SignalKind classifies the oracle capability that produced a signal.
// Kinds are tags on the common BeliefSignal shape; aggregation treats
// all kinds uniformly apart from the per-kind weight multiplier.
type SignalKind string

const (
	SignalSentiment   SignalKind = "sentiment"
	SignalProbability SignalKind = "probability"
	SignalNarrative   SignalKind = "narrative"
	SignalForecast    SignalKind = "model_forecast"
	SignalConsensus   SignalKind = "consensus_metric"
)

func ValidSignalKind(k string) bool {
	switch SignalKind(k) {
	case SignalSentiment, SignalProbability, SignalNarrative, SignalForecast, SignalConsensus:
		return true
	}
	return false
}

// AggregationWeight returns the kind-level weight multiplier applied on
// top of the signal's own submitted weight.
func (k SignalKind) AggregationWeight() float64 {
	switch k {
	case SignalProbability:
		return 1.2
	case SignalNarrative:
		return 0.8
	case SignalForecast:
		return 1.5
	case SignalConsensus:
		return 1.3
	default:
		return 1.0
	}
}

// BeliefSignal is a single normalized observation from one oracle source.
// Signals are immutable once accepted into a market's buffer.
type BeliefSignal struct {
	ID         uuid.UUID         `json:"id"`
	MarketID   uuid.UUID         `json:"market_id"`
	Source     string            `json:"source"`
	Kind       SignalKind        `json:"kind"`
	Value      float64           `json:"value"`
	Weight     float64           `json:"weight"`
	Confidence *float64          `json:"confidence,omitempty"`
	ObservedAt time.Time         `json:"observed_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SignalSet is a materialized, consistent view of a market's signal
// buffer at a point in time. Signals are ordered by observation time;
// BySource groups the same signals without copying eviction state.
type SignalSet struct {
	TakenAt  time.Time                 `json:"taken_at"`
	Signals  []BeliefSignal            `json:"signals"`
	BySource map[string][]BeliefSignal `json:"-"`
}

// SourceCount reports signal diversity: the number of distinct sources
// contributing to the set.
func (s *SignalSet) SourceCount() int {
	return len(s.BySource)
}

// Freshest returns the most recent observation time in the set, or the
// zero time when the set is empty.
func (s *SignalSet) Freshest() time.Time {
	var t time.Time
	for _, sig := range s.Signals {
		if sig.ObservedAt.After(t) {
			t = sig.ObservedAt
		}
	}
	return t
}
