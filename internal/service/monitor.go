package service

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAlreadyResolved reports an evaluation against a market whose
// monitor is already Confirmed. Expected once a market settles; a
// no-op for the caller, not a fault.
var ErrAlreadyResolved = errors.New("market already resolved")

// MonitorPhase is the per-market state machine phase.
type MonitorPhase string

const (
	PhaseIdle      MonitorPhase = "idle"
	PhaseCandidate MonitorPhase = "candidate"
	PhaseConfirmed MonitorPhase = "confirmed"
)

type monitorState struct {
	phase          MonitorPhase
	candidateSince time.Time
	inflection     *domain.BeliefInflection
}

// MonitorService watches each market's index stream against its belief
// condition and confirms an inflection only after the predicate has
// held for an unbroken persistence window. Persistence is tracked
// against the caller-supplied evaluation clock, never the wall clock,
// so independent evaluators reach the same decision from the same
// signal history.
type MonitorService struct {
	mu     sync.Mutex
	states map[uuid.UUID]*monitorState
	logger *zap.Logger
}

func NewMonitorService(logger *zap.Logger) *MonitorService {
	return &MonitorService{
		states: make(map[uuid.UUID]*monitorState),
		logger: logger,
	}
}

// Evaluate advances the market's state machine with one index
// observation. A nil bsi marks a failed computation cycle: the
// predicate counts as false and any candidate resets. Persistence
// must be unbroken, with no partial credit.
//
// The returned inflection is non-nil exactly once per market, on the
// Candidate → Confirmed transition.
func (m *MonitorService) Evaluate(market *domain.Market, bsi *domain.BeliefStateIndex, now time.Time) (*domain.BeliefInflection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[market.ID]
	if !ok {
		st = &monitorState{phase: PhaseIdle}
		m.states[market.ID] = st
	}

	if st.phase == PhaseConfirmed {
		return nil, ErrAlreadyResolved
	}

	if bsi == nil || !EvaluateCondition(market.Condition, bsi) {
		if st.phase == PhaseCandidate {
			m.logger.Debug("candidate reset",
				zap.String("market_id", market.ID.String()),
				zap.Duration("held", now.Sub(st.candidateSince)))
		}
		st.phase = PhaseIdle
		st.candidateSince = time.Time{}
		return nil, nil
	}

	if st.phase == PhaseIdle {
		st.phase = PhaseCandidate
		st.candidateSince = now
		m.logger.Debug("candidate entered",
			zap.String("market_id", market.ID.String()),
			zap.Float64("value", bsi.Value))
		return nil, nil
	}

	held := now.Sub(st.candidateSince)
	if held < market.Condition.Persistence() {
		return nil, nil
	}

	infl := &domain.BeliefInflection{
		ID:                 uuid.New(),
		MarketID:           market.ID,
		Kind:               market.Condition.Kind,
		ConfirmedAt:        now,
		Value:              bsi.Value,
		Velocity:           bsi.Velocity,
		Volatility:         bsi.Volatility,
		Magnitude:          ConditionMagnitude(market.Condition, bsi),
		PersistenceSeconds: int64(held / time.Second),
	}
	st.phase = PhaseConfirmed
	st.inflection = infl

	m.logger.Info("inflection confirmed",
		zap.String("market_id", market.ID.String()),
		zap.String("kind", string(infl.Kind)),
		zap.Float64("value", infl.Value),
		zap.Float64("magnitude", infl.Magnitude),
		zap.Int64("persistence_seconds", infl.PersistenceSeconds))

	return infl, nil
}

// Phase reports the market's current monitor phase.
func (m *MonitorService) Phase(marketID uuid.UUID) MonitorPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[marketID]; ok {
		return st.phase
	}
	return PhaseIdle
}

// Restore seeds a Confirmed state from a persisted inflection so that
// a restarted evaluator keeps the terminal guarantee.
func (m *MonitorService) Restore(marketID uuid.UUID, infl *domain.BeliefInflection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[marketID] = &monitorState{phase: PhaseConfirmed, inflection: infl}
}

// Forget releases the state of a market in a terminal lifecycle state.
func (m *MonitorService) Forget(marketID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, marketID)
}

// EvaluateCondition is the pure predicate of one index observation
// against the condition parameters. No variant reads raw signals.
func EvaluateCondition(c domain.BeliefCondition, bsi *domain.BeliefStateIndex) bool {
	switch c.Kind {
	case domain.ConditionSentimentShift:
		// Entry into the target polarity range, on whichever side of
		// the origin polarity it lies.
		if c.ToPolarity > c.FromPolarity {
			return bsi.Value >= c.ToPolarity
		}
		return bsi.Value <= c.ToPolarity
	case domain.ConditionProbabilityThreshold:
		if c.Direction == domain.DirectionBelow {
			return bsi.Value <= c.Threshold
		}
		return bsi.Value >= c.Threshold
	case domain.ConditionModelConsensus:
		return bsi.SourceCount >= c.MinModels && bsi.Volatility <= c.ConvergenceBand
	case domain.ConditionNarrativeVelocity:
		if math.Abs(bsi.Velocity) < c.VelocityThreshold {
			return false
		}
		return c.AccelerationThreshold == 0 || math.Abs(bsi.Acceleration) >= c.AccelerationThreshold
	default:
		return false
	}
}

// ConditionMagnitude is the condition-specific size of a satisfied
// predicate: overshoot past the target, margin inside the convergence
// band, or speed at confirmation.
func ConditionMagnitude(c domain.BeliefCondition, bsi *domain.BeliefStateIndex) float64 {
	switch c.Kind {
	case domain.ConditionSentimentShift:
		return math.Abs(bsi.Value - c.FromPolarity)
	case domain.ConditionProbabilityThreshold:
		return math.Abs(bsi.Value - c.Threshold)
	case domain.ConditionModelConsensus:
		return c.ConvergenceBand - bsi.Volatility
	case domain.ConditionNarrativeVelocity:
		return math.Abs(bsi.Velocity)
	default:
		return 0
	}
}
