package media

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Timing planner
// Distributes a fixed narration duration evenly across N clips of arbitrary
// length. Clips shorter than their slot are slowed down to fill it; clips at
// or above the slot are trimmed. Footage is never sped up.
// ---------------------------------------------------------------------------

// TimingPlan is the per-clip schedule for assembly. SpeedFactors[i] is the
// playback rate in (0, 1]: 1.0 means play at native speed and trim, anything
// below 1.0 means slow the clip so its stretched length equals the target.
type TimingPlan struct {
	TargetPerClip float64 // Seconds each clip occupies in the final timeline
	SpeedFactors  []float64
}

// ComputeTimingPlan derives the plan from the narration duration and the
// source durations of the clips in scene order. Pure: same inputs always
// produce the same plan.
func ComputeTimingPlan(narrationDuration float64, clipDurations []float64) (*TimingPlan, error) {
	if len(clipDurations) == 0 {
		return nil, fmt.Errorf("timing plan requires at least one clip")
	}
	if narrationDuration <= 0 {
		return nil, fmt.Errorf("timing plan requires a positive narration duration, got %.3f", narrationDuration)
	}

	target := narrationDuration / float64(len(clipDurations))

	factors := make([]float64, len(clipDurations))
	for i, source := range clipDurations {
		if source <= 0 {
			return nil, fmt.Errorf("clip %d has non-positive duration %.3f", i, source)
		}
		if source < target {
			factors[i] = source / target
		} else {
			factors[i] = 1.0
		}
	}

	return &TimingPlan{TargetPerClip: target, SpeedFactors: factors}, nil
}

// MusicLoopCount returns how many repeats of a music track shorter than the
// narration are needed before trimming to the exact narration duration.
func MusicLoopCount(narrationDuration, musicDuration float64) int {
	return int(math.Ceil(narrationDuration/musicDuration)) + 1
}
