package service

import (
	"errors"
	"testing"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func idx(value float64, at time.Time) *domain.BeliefStateIndex {
	return &domain.BeliefStateIndex{Value: value, SourceCount: 3, ComputedAt: at}
}

func TestMonitor_ConfirmAfterPersistence(t *testing.T) {
	monitor := NewMonitorService(zap.NewNop())
	market := probabilityMarket()

	infl, err := monitor.Evaluate(market, idx(0.8, testBase), testBase)
	if err != nil || infl != nil {
		t.Fatalf("first Evaluate() = (%v, %v), want candidate entry", infl, err)
	}
	if got := monitor.Phase(market.ID); got != PhaseCandidate {
		t.Fatalf("Phase() = %q, want candidate", got)
	}

	at := testBase.Add(30 * time.Second)
	if infl, _ := monitor.Evaluate(market, idx(0.8, at), at); infl != nil {
		t.Fatal("confirmed before persistence window elapsed")
	}

	at = testBase.Add(60 * time.Second)
	infl, err = monitor.Evaluate(market, idx(0.82, at), at)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if infl == nil {
		t.Fatal("expected confirmation after persistence window")
	}
	if infl.PersistenceSeconds != 60 {
		t.Errorf("PersistenceSeconds = %d, want 60", infl.PersistenceSeconds)
	}
	if infl.Value != 0.82 {
		t.Errorf("Value = %v, want index at confirmation", infl.Value)
	}
	if !infl.ConfirmedAt.Equal(at) {
		t.Errorf("ConfirmedAt = %v, want %v", infl.ConfirmedAt, at)
	}
	if got := monitor.Phase(market.ID); got != PhaseConfirmed {
		t.Errorf("Phase() = %q, want confirmed", got)
	}

	// Confirmed is terminal.
	if _, err := monitor.Evaluate(market, idx(0.9, at.Add(time.Second)), at.Add(time.Second)); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("post-confirmation Evaluate() error = %v, want ErrAlreadyResolved", err)
	}
}

func TestMonitor_BrokenPersistenceResets(t *testing.T) {
	monitor := NewMonitorService(zap.NewNop())
	market := probabilityMarket()

	monitor.Evaluate(market, idx(0.8, testBase), testBase)

	// A failed computation counts as predicate-false and resets the
	// candidate; no partial credit.
	at := testBase.Add(30 * time.Second)
	if infl, _ := monitor.Evaluate(market, nil, at); infl != nil {
		t.Fatal("nil index must never confirm")
	}
	if got := monitor.Phase(market.ID); got != PhaseIdle {
		t.Fatalf("Phase() after break = %q, want idle", got)
	}

	restart := testBase.Add(40 * time.Second)
	monitor.Evaluate(market, idx(0.8, restart), restart)

	// 59s into the fresh window: still a candidate.
	at = restart.Add(59 * time.Second)
	if infl, _ := monitor.Evaluate(market, idx(0.8, at), at); infl != nil {
		t.Fatal("confirmed before fresh window elapsed")
	}

	at = restart.Add(60 * time.Second)
	infl, err := monitor.Evaluate(market, idx(0.8, at), at)
	if err != nil || infl == nil {
		t.Fatalf("Evaluate() = (%v, %v), want confirmation from fresh window", infl, err)
	}
}

func TestMonitor_PredicateFalseWhileIdle(t *testing.T) {
	monitor := NewMonitorService(zap.NewNop())
	market := probabilityMarket()

	infl, err := monitor.Evaluate(market, idx(0.5, testBase), testBase)
	if err != nil || infl != nil {
		t.Fatalf("Evaluate() = (%v, %v), want idle no-op", infl, err)
	}
	if got := monitor.Phase(market.ID); got != PhaseIdle {
		t.Errorf("Phase() = %q, want idle", got)
	}
}

func TestMonitor_Restore(t *testing.T) {
	monitor := NewMonitorService(zap.NewNop())
	market := probabilityMarket()

	monitor.Restore(market.ID, &domain.BeliefInflection{
		ID:       uuid.New(),
		MarketID: market.ID,
	})

	if _, err := monitor.Evaluate(market, idx(0.9, testBase), testBase); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("Evaluate() after Restore error = %v, want ErrAlreadyResolved", err)
	}
}

func TestEvaluateCondition(t *testing.T) {
	tests := []struct {
		name string
		cond domain.BeliefCondition
		bsi  domain.BeliefStateIndex
		want bool
	}{
		{
			name: "sentiment shift upward satisfied",
			cond: domain.BeliefCondition{Kind: domain.ConditionSentimentShift, FromPolarity: -0.5, ToPolarity: 0.5},
			bsi:  domain.BeliefStateIndex{Value: 0.6},
			want: true,
		},
		{
			name: "sentiment shift upward short",
			cond: domain.BeliefCondition{Kind: domain.ConditionSentimentShift, FromPolarity: -0.5, ToPolarity: 0.5},
			bsi:  domain.BeliefStateIndex{Value: 0.4},
			want: false,
		},
		{
			name: "sentiment shift downward satisfied",
			cond: domain.BeliefCondition{Kind: domain.ConditionSentimentShift, FromPolarity: 0.5, ToPolarity: -0.5},
			bsi:  domain.BeliefStateIndex{Value: -0.7},
			want: true,
		},
		{
			name: "probability above",
			cond: domain.BeliefCondition{Kind: domain.ConditionProbabilityThreshold, Threshold: 0.7, Direction: domain.DirectionAbove},
			bsi:  domain.BeliefStateIndex{Value: 0.7},
			want: true,
		},
		{
			name: "probability below",
			cond: domain.BeliefCondition{Kind: domain.ConditionProbabilityThreshold, Threshold: 0.3, Direction: domain.DirectionBelow},
			bsi:  domain.BeliefStateIndex{Value: 0.4},
			want: false,
		},
		{
			name: "consensus converged",
			cond: domain.BeliefCondition{Kind: domain.ConditionModelConsensus, MinModels: 3, ConvergenceBand: 0.1},
			bsi:  domain.BeliefStateIndex{SourceCount: 4, Volatility: 0.05},
			want: true,
		},
		{
			name: "consensus too few models",
			cond: domain.BeliefCondition{Kind: domain.ConditionModelConsensus, MinModels: 5, ConvergenceBand: 0.1},
			bsi:  domain.BeliefStateIndex{SourceCount: 4, Volatility: 0.05},
			want: false,
		},
		{
			name: "narrative velocity either direction",
			cond: domain.BeliefCondition{Kind: domain.ConditionNarrativeVelocity, VelocityThreshold: 0.05},
			bsi:  domain.BeliefStateIndex{Velocity: -0.08},
			want: true,
		},
		{
			name: "narrative velocity with acceleration gate",
			cond: domain.BeliefCondition{Kind: domain.ConditionNarrativeVelocity, VelocityThreshold: 0.05, AccelerationThreshold: 0.01},
			bsi:  domain.BeliefStateIndex{Velocity: 0.08, Acceleration: 0.001},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateCondition(tt.cond, &tt.bsi); got != tt.want {
				t.Errorf("EvaluateCondition() = %v, want %v", got, tt.want)
			}
		})
	}
}
