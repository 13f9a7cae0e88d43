package service

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
)

// Signal reject reasons. All wrap ErrSignalRejected so callers can
// distinguish a policy rejection from an infrastructure failure.
var (
	ErrSignalRejected  = errors.New("signal rejected")
	ErrFutureTimestamp = fmt.Errorf("%w: timestamp in the future", ErrSignalRejected)
	ErrNegativeWeight  = fmt.Errorf("%w: negative weight", ErrSignalRejected)
	ErrDuplicateSignal = fmt.Errorf("%w: duplicate (source, timestamp)", ErrSignalRejected)
	ErrOutlierSignal   = fmt.Errorf("%w: outlier beyond z-score threshold", ErrSignalRejected)
)

// outlierWeightFactor is applied to an outlier's weight when the
// market's policy is to down-weight instead of reject.
const outlierWeightFactor = 0.25

// flatWindowEpsilon is the stddev below which a window counts as flat.
// Summing identical float64 values can leave a spread on the order of
// 1e-16, which would turn any deviation into an astronomical z-score.
const flatWindowEpsilon = 1e-9

// BufferConfig holds the signal window policy, derived from the
// market's configuration.
type BufferConfig struct {
	Retention          time.Duration
	MinSources         int
	OutlierZThreshold  float64
	DownweightOutliers bool
}

// BufferConfigFor derives the buffer policy from a market config.
func BufferConfigFor(cfg domain.MarketConfig) BufferConfig {
	return BufferConfig{
		Retention:          cfg.Retention(),
		MinSources:         cfg.MinSources,
		OutlierZThreshold:  cfg.OutlierZThreshold,
		DownweightOutliers: cfg.DownweightOutliers,
	}
}

type sourceStamp struct {
	source string
	at     int64
}

// SignalBuffer is the per-market, time-windowed store of raw belief
// signals. Append, evict, and snapshot are safe under concurrent
// writers; Snapshot presents an atomic, consistent view.
type SignalBuffer struct {
	mu       sync.RWMutex
	cfg      BufferConfig
	bySource map[string][]domain.BeliefSignal
	seen     map[sourceStamp]struct{}
}

func NewSignalBuffer(cfg BufferConfig) *SignalBuffer {
	return &SignalBuffer{
		cfg:      cfg,
		bySource: make(map[string][]domain.BeliefSignal),
		seen:     make(map[sourceStamp]struct{}),
	}
}

// Ingest validates and stores one signal. The signal is rejected if
// its timestamp is in the future, its weight is negative, it repeats
// an accepted (source, timestamp) pair, or its value is an outlier
// against the current window of its kind. Outliers are still accepted
// when dropping them would leave the window below the minimum source
// count, or at reduced weight when the policy down-weights instead.
func (b *SignalBuffer) Ingest(sig domain.BeliefSignal, now time.Time) error {
	if sig.ObservedAt.After(now) {
		return ErrFutureTimestamp
	}
	if sig.Weight < 0 {
		return ErrNegativeWeight
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.evictLocked(now)

	stamp := sourceStamp{source: sig.Source, at: sig.ObservedAt.UnixNano()}
	if _, dup := b.seen[stamp]; dup {
		return ErrDuplicateSignal
	}

	if z, ok := b.zScoreLocked(sig); ok && z > b.cfg.OutlierZThreshold {
		switch {
		case len(b.bySource) < b.cfg.MinSources:
			// Accept: rejection would starve the diversity gate.
		case b.cfg.DownweightOutliers:
			sig.Weight *= outlierWeightFactor
		default:
			return ErrOutlierSignal
		}
	}

	b.seen[stamp] = struct{}{}
	window := b.bySource[sig.Source]
	i := sort.Search(len(window), func(i int) bool {
		return window[i].ObservedAt.After(sig.ObservedAt)
	})
	window = append(window, domain.BeliefSignal{})
	copy(window[i+1:], window[i:])
	window[i] = sig
	b.bySource[sig.Source] = window

	return nil
}

// zScoreLocked computes the absolute z-score of the incoming value
// against the buffered window of the same signal kind. Returns false
// when the window is too small or flat for the score to mean anything.
func (b *SignalBuffer) zScoreLocked(sig domain.BeliefSignal) (float64, bool) {
	var values []float64
	for _, window := range b.bySource {
		for _, s := range window {
			if s.Kind == sig.Kind {
				values = append(values, s.Value)
			}
		}
	}
	if len(values) < 3 {
		return 0, false
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
	variance /= float64(len(values))
	stddev := math.Sqrt(variance)
	if stddev < flatWindowEpsilon {
		return 0, false
	}

	return math.Abs((sig.Value - mean) / stddev), true
}

// evictLocked drops signals older than the retention window.
func (b *SignalBuffer) evictLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.Retention)
	for source, window := range b.bySource {
		i := sort.Search(len(window), func(i int) bool {
			return !window[i].ObservedAt.Before(cutoff)
		})
		if i == 0 {
			continue
		}
		for _, s := range window[:i] {
			delete(b.seen, sourceStamp{source: source, at: s.ObservedAt.UnixNano()})
		}
		kept := window[i:]
		if len(kept) == 0 {
			delete(b.bySource, source)
			continue
		}
		b.bySource[source] = append([]domain.BeliefSignal(nil), kept...)
	}
}

// Snapshot evicts expired entries and returns a materialized,
// time-ordered view grouped by source.
func (b *SignalBuffer) Snapshot(now time.Time) domain.SignalSet {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evictLocked(now)

	set := domain.SignalSet{
		TakenAt:  now,
		BySource: make(map[string][]domain.BeliefSignal, len(b.bySource)),
	}
	for source, window := range b.bySource {
		copied := append([]domain.BeliefSignal(nil), window...)
		set.BySource[source] = copied
		set.Signals = append(set.Signals, copied...)
	}
	sort.Slice(set.Signals, func(i, j int) bool {
		a, b := set.Signals[i], set.Signals[j]
		if !a.ObservedAt.Equal(b.ObservedAt) {
			return a.ObservedAt.Before(b.ObservedAt)
		}
		return a.Source < b.Source
	})

	return set
}

// Len reports the total buffered signal count.
func (b *SignalBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, window := range b.bySource {
		n += len(window)
	}
	return n
}

// BufferSet holds one signal buffer per market.
type BufferSet struct {
	mu      sync.Mutex
	buffers map[uuid.UUID]*SignalBuffer
}

func NewBufferSet() *BufferSet {
	return &BufferSet{buffers: make(map[uuid.UUID]*SignalBuffer)}
}

// ForMarket returns the market's buffer, creating it from the market
// config on first use.
func (s *BufferSet) ForMarket(m *domain.Market) *SignalBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.buffers[m.ID]
	if !ok {
		buf = NewSignalBuffer(BufferConfigFor(m.Config))
		s.buffers[m.ID] = buf
	}
	return buf
}

// Drop releases the buffer of a market that reached a terminal state.
func (s *BufferSet) Drop(marketID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buffers, marketID)
}
