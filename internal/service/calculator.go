package service

import (
	"errors"
	"math"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrInsufficientDiversity aborts a cycle with fewer distinct
	// sources than the market minimum. The prior index is retained and
	// the cycle retried once more signals arrive.
	ErrInsufficientDiversity = errors.New("insufficient source diversity")
	// ErrUndefinedIndex aborts a cycle whose total effective weight is
	// zero; the index is undefined rather than zero.
	ErrUndefinedIndex = errors.New("undefined index: zero total effective weight")
)

// Confidence blend weights. Confidence is monotone increasing in
// diversity and recency, decreasing in value spread.
const (
	confidenceDiversityShare = 0.4
	confidenceSpreadShare    = 0.3
	confidenceRecencyShare   = 0.3
)

// Calculator converts a buffered signal set into one decayed, weighted
// index value plus derived kinematics. Compute is pure: all state
// (prior index, recent value history) is supplied by the caller, so
// identical inputs produce bit-identical output.
type Calculator struct {
	cfg domain.MarketConfig
	dom domain.IndexDomain
}

func NewCalculator(cfg domain.MarketConfig, dom domain.IndexDomain) *Calculator {
	return &Calculator{cfg: cfg, dom: dom}
}

// Compute aggregates the snapshot into a BeliefStateIndex. history
// holds the most recent computed values, oldest first, and feeds the
// rolling volatility window together with the new value.
func (c *Calculator) Compute(set domain.SignalSet, now time.Time, prior *domain.BeliefStateIndex, history []float64) (*domain.BeliefStateIndex, error) {
	if set.SourceCount() < c.cfg.MinSources {
		return nil, ErrInsufficientDiversity
	}

	var weightedSum, totalWeight float64
	for _, sig := range set.Signals {
		w := c.effectiveWeight(sig, now)
		weightedSum += sig.Value * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return nil, ErrUndefinedIndex
	}

	value := c.dom.Clamp(weightedSum / totalWeight)

	var velocity, acceleration float64
	if prior != nil {
		dt := now.Sub(prior.ComputedAt).Seconds()
		if dt > 0 {
			velocity = (value - prior.Value) / dt
			acceleration = (velocity - prior.Velocity) / dt
		}
	}

	bsi := &domain.BeliefStateIndex{
		MarketID:     marketIDOf(set),
		Value:        value,
		Velocity:     velocity,
		Acceleration: acceleration,
		Volatility:   rollingVolatility(history, value, c.cfg.VolatilityWindow),
		Confidence:   c.confidence(set, now),
		SignalCount:  len(set.Signals),
		SourceCount:  set.SourceCount(),
		ComputedAt:   now,
	}
	return bsi, nil
}

// effectiveWeight applies the kind multiplier and exponential age
// decay: weight * kindWeight * decayFactor^(age/decayWindow). A decay
// factor of 1 disables decay.
func (c *Calculator) effectiveWeight(sig domain.BeliefSignal, now time.Time) float64 {
	w := sig.Weight * sig.Kind.AggregationWeight()
	if c.cfg.DecayFactor == 1 {
		return w
	}
	age := now.Sub(sig.ObservedAt).Seconds()
	if age < 0 {
		age = 0
	}
	return w * math.Pow(c.cfg.DecayFactor, age/float64(c.cfg.DecayWindowSeconds))
}

// rollingVolatility is the sample standard deviation over the last
// window computed values, the new value included. Below two values the
// volatility is zero by definition.
func rollingVolatility(history []float64, value float64, window int) float64 {
	values := append(append([]float64(nil), history...), value)
	if len(values) > window {
		values = values[len(values)-window:]
	}
	if len(values) < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance)
}

// confidence blends diversity against the target source count, the
// inverse value spread relative to the domain width, and the recency
// of the freshest contributing signal. Each factor is in [0, 1].
func (c *Calculator) confidence(set domain.SignalSet, now time.Time) float64 {
	diversity := float64(set.SourceCount()) / float64(c.cfg.TargetSources)
	if diversity > 1 {
		diversity = 1
	}

	spread := valueSpread(set.Signals) / (c.dom.Width() / 2)
	inverseSpread := 1 - spread
	if inverseSpread < 0 {
		inverseSpread = 0
	}

	recency := 0.0
	if freshest := set.Freshest(); !freshest.IsZero() {
		age := now.Sub(freshest).Seconds()
		if age < 0 {
			age = 0
		}
		recency = 1 - age/float64(c.cfg.RetentionSeconds)
		if recency < 0 {
			recency = 0
		}
	}

	conf := confidenceDiversityShare*diversity + confidenceSpreadShare*inverseSpread + confidenceRecencyShare*recency
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// valueSpread is the population standard deviation of signal values.
func valueSpread(signals []domain.BeliefSignal) float64 {
	if len(signals) < 2 {
		return 0
	}

	var sum float64
	for _, s := range signals {
		sum += s.Value
	}
	mean := sum / float64(len(signals))

	var variance float64
	for _, s := range signals {
		d := s.Value - mean
		variance += d * d
	}
	variance /= float64(len(signals))

	return math.Sqrt(variance)
}

func marketIDOf(set domain.SignalSet) uuid.UUID {
	if len(set.Signals) > 0 {
		return set.Signals[0].MarketID
	}
	return uuid.Nil
}
