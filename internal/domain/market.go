package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MarketType determines the index domain and the family of conditions
// a market resolves on.
type MarketType string

const (
	MarketSentimentTransition  MarketType = "sentiment_transition"
	MarketProbabilityThreshold MarketType = "probability_threshold"
	MarketModelConsensus       MarketType = "model_consensus"
	MarketNarrativeVelocity    MarketType = "narrative_velocity"
)

func ValidMarketType(t string) bool {
	switch MarketType(t) {
	case MarketSentimentTransition, MarketProbabilityThreshold, MarketModelConsensus, MarketNarrativeVelocity:
		return true
	}
	return false
}

// IndexDomain returns the value interval for this market type.
// Sentiment and narrative indices are bipolar; probability and
// consensus indices live on the unit interval.
func (t MarketType) IndexDomain() IndexDomain {
	switch t {
	case MarketProbabilityThreshold, MarketModelConsensus:
		return DomainUnit
	default:
		return DomainBipolar
	}
}

// MarketState is the lifecycle state of a market.
type MarketState string

const (
	// StateActive markets accept positions and signals.
	StateActive MarketState = "active"
	// StateMonitoring markets have produced at least one index value
	// and are being watched for an inflection.
	StateMonitoring MarketState = "monitoring"
	// StateResolved markets have a confirmed inflection. Terminal.
	StateResolved MarketState = "resolved"
	// StateCancelled markets were withdrawn by the operator. Terminal.
	StateCancelled MarketState = "cancelled"
	// StateExpired markets passed their deadline without an inflection.
	StateExpired MarketState = "expired"
)

// CurveKind selects the settlement payout curve.
type CurveKind string

const (
	CurveLinear      CurveKind = "linear"
	CurveExponential CurveKind = "exponential"
	CurveGaussian    CurveKind = "gaussian"
	CurveCustom      CurveKind = "custom"
)

// SettlementCurve maps a position's time-distance from the confirmed
// inflection to a payout multiplier. Parameters are fixed for the life
// of the market.
type SettlementCurve struct {
	Kind CurveKind `json:"kind"`
	// DecayRate is the linear multiplier lost per second of distance.
	DecayRate float64 `json:"decay_rate,omitempty"`
	// Rate is the exponential decay constant per second of distance.
	Rate float64 `json:"rate,omitempty"`
	// Sigma is the gaussian standard deviation in seconds.
	Sigma float64 `json:"sigma,omitempty"`
	// Params holds [cap, rate] for custom curves: multiplier
	// cap * exp(-rate * distance).
	Params []float64 `json:"params,omitempty"`
}

func (c SettlementCurve) Validate() error {
	switch c.Kind {
	case CurveLinear:
		if c.DecayRate <= 0 {
			return fmt.Errorf("%w: linear curve needs positive decay rate", ErrInvalidConfig)
		}
	case CurveExponential:
		if c.Rate <= 0 {
			return fmt.Errorf("%w: exponential curve needs positive rate", ErrInvalidConfig)
		}
	case CurveGaussian:
		if c.Sigma <= 0 {
			return fmt.Errorf("%w: gaussian curve needs positive sigma", ErrInvalidConfig)
		}
	case CurveCustom:
		if len(c.Params) != 2 || c.Params[0] <= 0 || c.Params[1] <= 0 {
			return fmt.Errorf("%w: custom curve needs positive [cap, rate] params", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown curve kind %q", ErrInvalidConfig, c.Kind)
	}
	return nil
}

// TimeRange is the market's accepted inflection window. Position
// buckets must fall inside it.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// ContainsBucket reports whether the bucket lies entirely inside the range.
func (r TimeRange) ContainsBucket(b TimeBucket) bool {
	return !b.Start.Before(r.Start) && !b.End.After(r.End)
}

// MarketConfig is supplied once at market creation and immutable for
// the life of the market.
type MarketConfig struct {
	// DecayFactor in (0, 1]; 1 disables decay.
	DecayFactor float64 `json:"decay_factor"`
	// DecayWindowSeconds is the age at which a signal's weight has been
	// multiplied by DecayFactor once.
	DecayWindowSeconds int64 `json:"decay_window_seconds"`
	// RetentionSeconds is the signal buffer retention window.
	RetentionSeconds int64 `json:"retention_seconds"`
	// MinSources is the diversity floor for a valid index computation.
	MinSources int `json:"min_sources"`
	// TargetSources is the diversity count at which the confidence
	// diversity factor saturates.
	TargetSources int `json:"target_sources"`
	// OutlierZThreshold is the z-score beyond which an incoming signal
	// is treated as an outlier.
	OutlierZThreshold float64 `json:"outlier_z_threshold"`
	// DownweightOutliers accepts outliers at reduced weight instead of
	// rejecting them.
	DownweightOutliers bool `json:"downweight_outliers"`
	// VolatilityWindow is the number of recent index values the rolling
	// volatility is computed over.
	VolatilityWindow int `json:"volatility_window"`

	MinStake uint64 `json:"min_stake"`
	MaxStake uint64 `json:"max_stake"`

	AcceptedRange TimeRange       `json:"accepted_range"`
	Curve         SettlementCurve `json:"curve"`

	// ExpiresAt is the deadline after which an unresolved market expires.
	ExpiresAt time.Time `json:"expires_at"`
}

// Config defaults applied by ApplyDefaults.
const (
	DefaultDecayFactor       = 0.95
	DefaultDecayWindow       = int64(300)
	DefaultRetention         = int64(3600)
	DefaultMinSources        = 3
	DefaultTargetSources     = 5
	DefaultOutlierZThreshold = 3.0
	DefaultVolatilityWindow  = 10
)

// ApplyDefaults fills unset tunables with their defaults.
func (c *MarketConfig) ApplyDefaults() {
	if c.DecayFactor == 0 {
		c.DecayFactor = DefaultDecayFactor
	}
	if c.DecayWindowSeconds == 0 {
		c.DecayWindowSeconds = DefaultDecayWindow
	}
	if c.RetentionSeconds == 0 {
		c.RetentionSeconds = DefaultRetention
	}
	if c.MinSources == 0 {
		c.MinSources = DefaultMinSources
	}
	if c.TargetSources == 0 {
		c.TargetSources = DefaultTargetSources
	}
	if c.OutlierZThreshold == 0 {
		c.OutlierZThreshold = DefaultOutlierZThreshold
	}
	if c.VolatilityWindow == 0 {
		c.VolatilityWindow = DefaultVolatilityWindow
	}
}

// ErrInvalidConfig is returned for malformed market configuration.
var ErrInvalidConfig = fmt.Errorf("invalid market config")

func (c MarketConfig) Validate() error {
	if c.DecayFactor <= 0 || c.DecayFactor > 1 {
		return fmt.Errorf("%w: decay factor must be in (0, 1]", ErrInvalidConfig)
	}
	if c.DecayWindowSeconds <= 0 {
		return fmt.Errorf("%w: decay window must be positive", ErrInvalidConfig)
	}
	if c.RetentionSeconds <= 0 {
		return fmt.Errorf("%w: retention window must be positive", ErrInvalidConfig)
	}
	if c.MinSources < 3 {
		return fmt.Errorf("%w: minimum source count cannot be below 3", ErrInvalidConfig)
	}
	if c.TargetSources < c.MinSources {
		return fmt.Errorf("%w: target source count below minimum", ErrInvalidConfig)
	}
	if c.OutlierZThreshold <= 0 {
		return fmt.Errorf("%w: outlier threshold must be positive", ErrInvalidConfig)
	}
	if c.VolatilityWindow < 2 {
		return fmt.Errorf("%w: volatility window must be at least 2", ErrInvalidConfig)
	}
	if c.MinStake == 0 || c.MinStake > c.MaxStake {
		return fmt.Errorf("%w: stake bounds must satisfy 0 < min <= max", ErrInvalidConfig)
	}
	if !c.AcceptedRange.Start.Before(c.AcceptedRange.End) {
		return fmt.Errorf("%w: accepted range start must precede end", ErrInvalidConfig)
	}
	if !c.ExpiresAt.After(c.AcceptedRange.Start) {
		return fmt.Errorf("%w: expiry must fall after the accepted range opens", ErrInvalidConfig)
	}
	return c.Curve.Validate()
}

// Retention returns the signal buffer retention window.
func (c MarketConfig) Retention() time.Duration {
	return time.Duration(c.RetentionSeconds) * time.Second
}

// DecayWindow returns the decay half-interval as a duration.
func (c MarketConfig) DecayWindow() time.Duration {
	return time.Duration(c.DecayWindowSeconds) * time.Second
}

// Market owns its signal buffer, index history, and position set.
// Positions refer back to it by ID only.
type Market struct {
	ID               uuid.UUID       `json:"id"`
	Creator          string          `json:"creator"`
	Type             MarketType      `json:"type"`
	Description      string          `json:"description"`
	Condition        BeliefCondition `json:"condition"`
	Config           MarketConfig    `json:"config"`
	State            MarketState     `json:"state"`
	TotalStaked      uint64          `json:"total_staked"`
	ParticipantCount int             `json:"participant_count"`
	CreatedAt        time.Time       `json:"created_at"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
}

// AcceptsSignals reports whether the market still ingests signals.
func (m *Market) AcceptsSignals() bool {
	return m.State == StateActive || m.State == StateMonitoring
}

// AcceptsPositions reports whether new positions may be placed.
func (m *Market) AcceptsPositions(now time.Time) bool {
	return m.AcceptsSignals() && now.Before(m.Config.AcceptedRange.End)
}

// Resolved reports whether a confirmed inflection exists.
func (m *Market) Resolved() bool { return m.State == StateResolved }

// Expired reports whether the deadline passed without resolution.
func (m *Market) Expired(now time.Time) bool {
	return m.AcceptsSignals() && now.After(m.Config.ExpiresAt)
}
