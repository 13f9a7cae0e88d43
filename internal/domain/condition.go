package domain

import (
	"errors"
	"fmt"
	"time"
)

// ConditionKind selects the belief condition variant a market resolves on.
type ConditionKind string

const (
	ConditionSentimentShift       ConditionKind = "sentiment_shift"
	ConditionProbabilityThreshold ConditionKind = "probability_threshold"
	ConditionModelConsensus       ConditionKind = "model_consensus"
	ConditionNarrativeVelocity    ConditionKind = "narrative_velocity"
)

func ValidConditionKind(k string) bool {
	switch ConditionKind(k) {
	case ConditionSentimentShift, ConditionProbabilityThreshold, ConditionModelConsensus, ConditionNarrativeVelocity:
		return true
	}
	return false
}

// ThresholdDirection is the crossing direction for probability conditions.
type ThresholdDirection string

const (
	DirectionAbove ThresholdDirection = "above"
	DirectionBelow ThresholdDirection = "below"
)

// ErrInvalidCondition is returned for malformed condition parameters.
// It is a configuration error surfaced at market creation, before any
// aggregation begins.
var ErrInvalidCondition = errors.New("invalid belief condition")

// BeliefCondition is the market-defined predicate an inflection must
// satisfy continuously for the persistence window. Only the fields of
// the selected Kind are meaningful; the rest stay zero. Fixed at market
// creation, never mutated.
type BeliefCondition struct {
	Kind ConditionKind `json:"kind"`

	// sentiment_shift
	FromPolarity float64 `json:"from_polarity,omitempty"`
	ToPolarity   float64 `json:"to_polarity,omitempty"`

	// probability_threshold
	Threshold float64            `json:"threshold,omitempty"`
	Direction ThresholdDirection `json:"direction,omitempty"`

	// model_consensus
	MinModels       int     `json:"min_models,omitempty"`
	ConvergenceBand float64 `json:"convergence_band,omitempty"`

	// narrative_velocity
	VelocityThreshold     float64 `json:"velocity_threshold,omitempty"`
	AccelerationThreshold float64 `json:"acceleration_threshold,omitempty"`

	PersistenceSeconds int64 `json:"persistence_seconds"`
}

// Persistence returns the minimum continuous duration the predicate
// must hold before the condition is treated as confirmed.
func (c BeliefCondition) Persistence() time.Duration {
	return time.Duration(c.PersistenceSeconds) * time.Second
}

// Validate checks condition parameters against the market's index
// domain. All failures wrap ErrInvalidCondition.
func (c BeliefCondition) Validate(dom IndexDomain) error {
	if c.PersistenceSeconds <= 0 {
		return fmt.Errorf("%w: persistence window must be positive", ErrInvalidCondition)
	}

	switch c.Kind {
	case ConditionSentimentShift:
		if !dom.Contains(c.FromPolarity) || !dom.Contains(c.ToPolarity) {
			return fmt.Errorf("%w: polarity outside index domain [%g, %g]", ErrInvalidCondition, dom.Min, dom.Max)
		}
		if c.FromPolarity == c.ToPolarity {
			return fmt.Errorf("%w: sentiment shift requires distinct polarities", ErrInvalidCondition)
		}
	case ConditionProbabilityThreshold:
		if !dom.Contains(c.Threshold) {
			return fmt.Errorf("%w: threshold outside index domain [%g, %g]", ErrInvalidCondition, dom.Min, dom.Max)
		}
		if c.Direction != DirectionAbove && c.Direction != DirectionBelow {
			return fmt.Errorf("%w: direction must be above or below", ErrInvalidCondition)
		}
	case ConditionModelConsensus:
		if c.MinModels < 2 {
			return fmt.Errorf("%w: consensus requires at least 2 models", ErrInvalidCondition)
		}
		if c.ConvergenceBand <= 0 || c.ConvergenceBand > dom.Width() {
			return fmt.Errorf("%w: convergence band must be in (0, %g]", ErrInvalidCondition, dom.Width())
		}
	case ConditionNarrativeVelocity:
		if c.VelocityThreshold <= 0 {
			return fmt.Errorf("%w: velocity threshold must be positive", ErrInvalidCondition)
		}
		if c.AccelerationThreshold < 0 {
			return fmt.Errorf("%w: acceleration threshold cannot be negative", ErrInvalidCondition)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCondition, c.Kind)
	}

	return nil
}
