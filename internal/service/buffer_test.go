package service

import (
	"errors"
	"testing"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
)

func bufCfg() BufferConfig {
	return BufferConfig{
		Retention:         time.Hour,
		MinSources:        3,
		OutlierZThreshold: 3.0,
	}
}

func sig(source string, value float64, at time.Time) domain.BeliefSignal {
	return domain.BeliefSignal{
		Source:     source,
		Kind:       domain.SignalSentiment,
		Value:      value,
		Weight:     1.0,
		ObservedAt: at,
	}
}

func TestSignalBuffer_RejectReasons(t *testing.T) {
	tests := []struct {
		name    string
		signal  domain.BeliefSignal
		wantErr error
	}{
		{
			name:    "future timestamp",
			signal:  sig("a", 0.5, testBase.Add(time.Minute)),
			wantErr: ErrFutureTimestamp,
		},
		{
			name: "negative weight",
			signal: domain.BeliefSignal{
				Source: "a", Kind: domain.SignalSentiment,
				Value: 0.5, Weight: -1, ObservedAt: testBase,
			},
			wantErr: ErrNegativeWeight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewSignalBuffer(bufCfg())
			err := buf.Ingest(tt.signal, testBase)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Ingest() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrSignalRejected) {
				t.Errorf("Ingest() error = %v, want wrapped ErrSignalRejected", err)
			}
		})
	}
}

func TestSignalBuffer_Duplicate(t *testing.T) {
	buf := NewSignalBuffer(bufCfg())

	if err := buf.Ingest(sig("a", 0.5, testBase), testBase); err != nil {
		t.Fatalf("first Ingest() error = %v", err)
	}
	err := buf.Ingest(sig("a", 0.7, testBase), testBase)
	if !errors.Is(err, ErrDuplicateSignal) {
		t.Errorf("duplicate Ingest() error = %v, want ErrDuplicateSignal", err)
	}
	// Same timestamp from a different source is fine.
	if err := buf.Ingest(sig("b", 0.7, testBase), testBase); err != nil {
		t.Errorf("other source Ingest() error = %v", err)
	}
}

func TestSignalBuffer_OutlierRejected(t *testing.T) {
	buf := NewSignalBuffer(bufCfg())
	now := testBase

	for i, s := range []struct {
		source string
		value  float64
	}{{"a", 0.1}, {"b", 0.2}, {"c", 0.3}} {
		at := now.Add(-time.Duration(i+1) * time.Minute)
		if err := buf.Ingest(sig(s.source, s.value, at), now); err != nil {
			t.Fatalf("seed Ingest() error = %v", err)
		}
	}

	err := buf.Ingest(sig("d", 0.9, now), now)
	if !errors.Is(err, ErrOutlierSignal) {
		t.Errorf("outlier Ingest() error = %v, want ErrOutlierSignal", err)
	}
	if got := buf.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}

func TestSignalBuffer_FlatWindowAcceptsSmallShift(t *testing.T) {
	buf := NewSignalBuffer(bufCfg())
	now := testBase

	// Three sources agree exactly. The float64 sum of identical values
	// leaves a spread around 1e-16, which must read as flat, not as a
	// window where a 0.05 move scores z > 1e14.
	for i, source := range []string{"a", "b", "c"} {
		at := now.Add(-time.Duration(i+1) * time.Minute)
		if err := buf.Ingest(sig(source, 0.8, at), now); err != nil {
			t.Fatalf("seed Ingest() error = %v", err)
		}
	}

	later := now.Add(time.Minute)
	if err := buf.Ingest(sig("a", 0.85, later), later); err != nil {
		t.Fatalf("Ingest() error = %v, want small shift accepted on flat window", err)
	}
	if got := buf.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
}

func TestSignalBuffer_OutlierDownweighted(t *testing.T) {
	cfg := bufCfg()
	cfg.DownweightOutliers = true
	buf := NewSignalBuffer(cfg)
	now := testBase

	for i, s := range []struct {
		source string
		value  float64
	}{{"a", 0.1}, {"b", 0.2}, {"c", 0.3}} {
		at := now.Add(-time.Duration(i+1) * time.Minute)
		if err := buf.Ingest(sig(s.source, s.value, at), now); err != nil {
			t.Fatalf("seed Ingest() error = %v", err)
		}
	}

	if err := buf.Ingest(sig("d", 0.9, now), now); err != nil {
		t.Fatalf("downweight Ingest() error = %v", err)
	}

	set := buf.Snapshot(now)
	window := set.BySource["d"]
	if len(window) != 1 {
		t.Fatalf("source d window length = %d, want 1", len(window))
	}
	if got := window[0].Weight; got != outlierWeightFactor {
		t.Errorf("downweighted weight = %v, want %v", got, outlierWeightFactor)
	}
}

func TestSignalBuffer_OutlierAcceptedBelowDiversity(t *testing.T) {
	buf := NewSignalBuffer(bufCfg())
	now := testBase

	// One source only: rejecting outliers would starve the diversity gate.
	for i, v := range []float64{0.1, 0.2, 0.3} {
		at := now.Add(-time.Duration(i+1) * time.Minute)
		if err := buf.Ingest(sig("a", v, at), now); err != nil {
			t.Fatalf("seed Ingest() error = %v", err)
		}
	}

	if err := buf.Ingest(sig("b", 0.9, now), now); err != nil {
		t.Fatalf("Ingest() error = %v, want accept below diversity floor", err)
	}
	set := buf.Snapshot(now)
	if got := set.BySource["b"][0].Weight; got != 1.0 {
		t.Errorf("accepted outlier weight = %v, want full weight 1.0", got)
	}
}

func TestSignalBuffer_Eviction(t *testing.T) {
	buf := NewSignalBuffer(bufCfg())
	now := testBase

	if err := buf.Ingest(sig("a", 0.5, now.Add(-2*time.Hour)), now.Add(-90*time.Minute)); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if err := buf.Ingest(sig("b", 0.5, now.Add(-time.Minute)), now); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	set := buf.Snapshot(now)
	if len(set.Signals) != 1 {
		t.Fatalf("Snapshot() signals = %d, want 1 after eviction", len(set.Signals))
	}
	if set.Signals[0].Source != "b" {
		t.Errorf("surviving signal source = %q, want %q", set.Signals[0].Source, "b")
	}
	if _, stale := set.BySource["a"]; stale {
		t.Error("evicted source still present in snapshot")
	}
}

func TestSignalBuffer_SnapshotOrdered(t *testing.T) {
	buf := NewSignalBuffer(bufCfg())
	now := testBase

	for i, s := range []struct {
		source string
		offset time.Duration
	}{{"c", -time.Minute}, {"a", -3 * time.Minute}, {"b", -2 * time.Minute}} {
		if err := buf.Ingest(sig(s.source, float64(i)*0.1, now.Add(s.offset)), now); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
	}

	set := buf.Snapshot(now)
	for i := 1; i < len(set.Signals); i++ {
		if set.Signals[i].ObservedAt.Before(set.Signals[i-1].ObservedAt) {
			t.Fatalf("snapshot not ordered by observation time at %d", i)
		}
	}
}
