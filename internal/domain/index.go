package domain

import (
	"time"

	"github.com/google/uuid"
)

// IndexDomain is the closed interval a market's index values live in.
type IndexDomain struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

var (
	// DomainBipolar is used by sentiment and narrative markets.
	DomainBipolar = IndexDomain{Min: -1, Max: 1}
	// DomainUnit is used by probability and consensus markets.
	DomainUnit = IndexDomain{Min: 0, Max: 1}
)

func (d IndexDomain) Contains(v float64) bool {
	return v >= d.Min && v <= d.Max
}

func (d IndexDomain) Clamp(v float64) float64 {
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

// Width returns the size of the domain interval.
func (d IndexDomain) Width() float64 {
	return d.Max - d.Min
}

// BeliefStateIndex is the aggregated, decayed scalar measuring current
// collective belief for one market, with its derived kinematics.
type BeliefStateIndex struct {
	ID           uuid.UUID `json:"id"`
	MarketID     uuid.UUID `json:"market_id"`
	Value        float64   `json:"value"`
	Velocity     float64   `json:"velocity"`
	Acceleration float64   `json:"acceleration"`
	Volatility   float64   `json:"volatility"`
	Confidence   float64   `json:"confidence"`
	SignalCount  int       `json:"signal_count"`
	SourceCount  int       `json:"source_count"`
	ComputedAt   time.Time `json:"computed_at"`
}

// Bullish reports whether the index indicates strongly positive belief.
func (b *BeliefStateIndex) Bullish() bool { return b.Value > 0.3 }

// Bearish reports whether the index indicates strongly negative belief.
func (b *BeliefStateIndex) Bearish() bool { return b.Value < -0.3 }

// Accelerating reports whether belief is changing quickly.
func (b *BeliefStateIndex) Accelerating() bool { return b.Velocity > 0.1 || b.Velocity < -0.1 }
