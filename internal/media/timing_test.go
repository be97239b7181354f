package media

import (
	"math"
	"testing"
)

func TestComputeTimingPlan(t *testing.T) {
	// 30s narration over clips of 8s, 12s and 20s: each slot is 10s, the
	// short clip is slowed to 0.8x, the long ones play natively and get
	// trimmed.
	plan, err := ComputeTimingPlan(30, []float64{8, 12, 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(plan.TargetPerClip-10) > 1e-9 {
		t.Errorf("expected target 10s per clip, got %v", plan.TargetPerClip)
	}

	want := []float64{0.8, 1.0, 1.0}
	for i, factor := range plan.SpeedFactors {
		if math.Abs(factor-want[i]) > 1e-9 {
			t.Errorf("clip %d: expected speed factor %v, got %v", i, want[i], factor)
		}
	}
}

func TestComputeTimingPlanFactorsNeverExceedOne(t *testing.T) {
	plan, err := ComputeTimingPlan(45, []float64{3, 7.5, 15, 60, 0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, factor := range plan.SpeedFactors {
		if factor <= 0 || factor > 1 {
			t.Errorf("clip %d: speed factor %v outside (0, 1]", i, factor)
		}
	}
}

func TestComputeTimingPlanStretchedDurationsFillNarration(t *testing.T) {
	narration := 42.5
	clips := []float64{5, 11, 42.5, 9.9}

	plan, err := ComputeTimingPlan(narration, clips)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Each clip, after slowing and trimming, occupies exactly one slot, so
	// the slots must sum to the narration duration.
	total := plan.TargetPerClip * float64(len(clips))
	if math.Abs(total-narration) > 1e-9 {
		t.Errorf("slots sum to %v, expected %v", total, narration)
	}

	// A slowed clip's stretched length equals its slot.
	for i, factor := range plan.SpeedFactors {
		if factor < 1 {
			stretched := clips[i] / factor
			if math.Abs(stretched-plan.TargetPerClip) > 1e-9 {
				t.Errorf("clip %d: stretched length %v, expected %v", i, stretched, plan.TargetPerClip)
			}
		}
	}
}

func TestComputeTimingPlanRejectsBadInput(t *testing.T) {
	if _, err := ComputeTimingPlan(30, nil); err == nil {
		t.Error("expected error for empty clip list")
	}
	if _, err := ComputeTimingPlan(0, []float64{10}); err == nil {
		t.Error("expected error for zero narration duration")
	}
	if _, err := ComputeTimingPlan(30, []float64{10, 0}); err == nil {
		t.Error("expected error for zero clip duration")
	}
	if _, err := ComputeTimingPlan(30, []float64{10, -3}); err == nil {
		t.Error("expected error for negative clip duration")
	}
}

func TestMusicLoopCount(t *testing.T) {
	cases := []struct {
		narration float64
		music     float64
		want      int
	}{
		{42, 15, 4},  // ceil(42/15)+1
		{30, 15, 3},  // exact multiple still gets the safety loop
		{10, 9.9, 3}, // barely over one repeat
		{5, 60, 2},   // track longer than narration (callers trim instead)
	}

	for _, c := range cases {
		if got := MusicLoopCount(c.narration, c.music); got != c.want {
			t.Errorf("MusicLoopCount(%v, %v) = %d, want %d", c.narration, c.music, got, c.want)
		}
	}
}
