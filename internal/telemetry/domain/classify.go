package telemetry

const (
	// Confirmation threshold for the derived analysis flags.
	confirmThreshold = 0.2

	// Spike threshold for the classifier.
	spikeThreshold = 0.8
)

// Rehab suggestion tags, keyed by dominant symptom.
const (
	SuggestionTremorFocus   = "tremor_focus"
	SuggestionRigidityFocus = "rigidity_focus"
	SuggestionMobilityFocus = "mobility_focus"
	SuggestionGaitFocus     = "gait_focus"
)

// Analyze derives the analysis flags and gait stability score from a score
// set. Flags confirm at scores above the fixed 0.2 threshold; the stability
// score is the inverse of gait risk on a 0-100 scale.
func Analyze(scores ScoreSet) Analysis {
	return Analysis{
		IsTremorConfirmed:  scores.Tremor > confirmThreshold,
		IsRigid:            scores.Rigidity > confirmThreshold,
		GaitStabilityScore: (1 - scores.Gait) * 100,
	}
}

// Classify maps scores and raw safety flags to at most one critical event
// label. Precedence is fixed, first match wins: fall, rigidity spike, tremor
// spike. Returns the empty string when no critical event occurred.
func Classify(safety SafetyReadings, scores ScoreSet) string {
	switch {
	case safety.FallDetected:
		return EventFall
	case scores.Rigidity > spikeThreshold:
		return EventRigiditySpike
	case scores.Tremor > spikeThreshold:
		return EventTremorSpike
	default:
		return ""
	}
}

// RehabSuggestion returns the suggestion tag for the highest-scoring symptom.
// Ties break in the order tremor, rigidity, slowness, gait.
func RehabSuggestion(scores ScoreSet) string {
	best := scores.Tremor
	tag := SuggestionTremorFocus
	if scores.Rigidity > best {
		best = scores.Rigidity
		tag = SuggestionRigidityFocus
	}
	if scores.Slowness > best {
		best = scores.Slowness
		tag = SuggestionMobilityFocus
	}
	if scores.Gait > best {
		tag = SuggestionGaitFocus
	}
	return tag
}
