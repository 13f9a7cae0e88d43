package domain

import (
	"testing"
	"time"
)

func TestTimeBucket_Creation(t *testing.T) {
	start := time.Unix(1000, 0)
	end := time.Unix(2000, 0)

	bucket, err := NewTimeBucket(start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bucket.Duration() != 1000*time.Second {
		t.Errorf("duration = %v, want 1000s", bucket.Duration())
	}
	if !bucket.Midpoint().Equal(time.Unix(1500, 0)) {
		t.Errorf("midpoint = %v, want t=1500", bucket.Midpoint())
	}

	if _, err := NewTimeBucket(end, start); err == nil {
		t.Error("expected error for inverted bucket")
	}
}

func TestTimeBucket_Contains(t *testing.T) {
	bucket := TimeBucket{Start: time.Unix(1000, 0), End: time.Unix(2000, 0)}

	if !bucket.Contains(time.Unix(1500, 0)) {
		t.Error("bucket should contain its interior")
	}
	if !bucket.Contains(time.Unix(1000, 0)) {
		t.Error("bucket should contain its start")
	}
	if bucket.Contains(time.Unix(2000, 0)) {
		t.Error("bucket end is exclusive")
	}
	if bucket.Contains(time.Unix(500, 0)) {
		t.Error("bucket should not contain earlier times")
	}
}

func TestTimeBucket_DistanceFrom(t *testing.T) {
	bucket := TimeBucket{Start: time.Unix(1000, 0), End: time.Unix(2000, 0)}

	if d := bucket.DistanceFrom(time.Unix(1000, 0)); d != 0 {
		t.Errorf("distance at start = %v, want 0", d)
	}
	if d := bucket.DistanceFrom(time.Unix(500, 0)); d != 500*time.Second {
		t.Errorf("distance before = %v, want 500s", d)
	}
	if d := bucket.DistanceFrom(time.Unix(1500, 0)); d != 500*time.Second {
		t.Errorf("distance after start = %v, want 500s", d)
	}
}

func TestTimeBucket_Overlaps(t *testing.T) {
	a := TimeBucket{Start: time.Unix(1000, 0), End: time.Unix(2000, 0)}
	b := TimeBucket{Start: time.Unix(1500, 0), End: time.Unix(2500, 0)}
	c := TimeBucket{Start: time.Unix(2000, 0), End: time.Unix(3000, 0)}

	if !a.Overlaps(b) || !b.Overlaps(a) {
		t.Error("overlapping buckets not detected")
	}
	if a.Overlaps(c) {
		t.Error("adjacent buckets should not overlap")
	}
}

func TestPosition_ROI(t *testing.T) {
	pos := Position{Amount: 1_000_000, Status: PositionOpen}
	if pos.ROI() != nil {
		t.Error("unsettled position should have nil ROI")
	}

	payout := uint64(2_000_000)
	pos.Payout = &payout
	pos.Status = PositionSettled
	roi := pos.ROI()
	if roi == nil || *roi != 100 {
		t.Errorf("ROI = %v, want 100", roi)
	}
}

func TestImpliedProbability(t *testing.T) {
	if p := ImpliedProbability(250, 1000); p != 0.25 {
		t.Errorf("implied probability = %f, want 0.25", p)
	}
	if p := ImpliedProbability(250, 0); p != 0 {
		t.Errorf("implied probability with empty market = %f, want 0", p)
	}
}
