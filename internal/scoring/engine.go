package scoring

import (
	"log"
	"math"

	"stancesense-cloud/internal/observability/metrics"
	telemetry "stancesense-cloud/internal/telemetry/domain"
)

// Symptom names used for strategy selection and fallback accounting.
const (
	SymptomTremor   = "tremor"
	SymptomRigidity = "rigidity"
	SymptomSlowness = "slowness"
	SymptomGait     = "gait"
)

// Strategy scores one symptom for a packet. An error means the backing model
// could not produce a score; the engine falls back to the heuristic for that
// symptom only.
type Strategy interface {
	Score(packet telemetry.SensorPacket) (float64, error)
}

// Predictor is the learned-model backend contract.
type Predictor interface {
	Predict(features map[string]float64) (float64, error)
}

// ModelStrategy scores a symptom through a learned model over the packet's
// feature vector.
type ModelStrategy struct {
	model Predictor
}

// NewModelStrategy wraps a loaded model handle.
func NewModelStrategy(model Predictor) *ModelStrategy {
	return &ModelStrategy{model: model}
}

// Score implements Strategy.
func (s *ModelStrategy) Score(packet telemetry.SensorPacket) (float64, error) {
	return s.model.Predict(BuildFeatures(packet))
}

type symptomScorer struct {
	name      string
	strategy  Strategy
	heuristic func(telemetry.SensorPacket) float64
}

// Engine computes the four symptom severity scores and assembles the
// processed packet. Strategies are selected once at construction and are
// read-only afterwards, safe for concurrent use.
type Engine struct {
	scorers [4]symptomScorer
	logger  *log.Logger
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithTremorModel enables the learned tremor strategy.
func WithTremorModel(model Predictor) EngineOption {
	return withModel(0, model)
}

// WithRigidityModel enables the learned rigidity strategy.
func WithRigidityModel(model Predictor) EngineOption {
	return withModel(1, model)
}

// WithSlownessModel enables the learned slowness strategy.
func WithSlownessModel(model Predictor) EngineOption {
	return withModel(2, model)
}

// WithGaitModel enables the learned gait strategy.
func WithGaitModel(model Predictor) EngineOption {
	return withModel(3, model)
}

func withModel(index int, model Predictor) EngineOption {
	return func(e *Engine) {
		if model != nil {
			e.scorers[index].strategy = NewModelStrategy(model)
		}
	}
}

// NewEngine constructs an engine with heuristic strategies; options swap in
// learned models per symptom.
func NewEngine(logger *log.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	engine := &Engine{
		scorers: [4]symptomScorer{
			{name: SymptomTremor, heuristic: heuristicTremor},
			{name: SymptomRigidity, heuristic: heuristicRigidity},
			{name: SymptomSlowness, heuristic: heuristicSlowness},
			{name: SymptomGait, heuristic: heuristicGait},
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Process scores a packet, derives the analysis, classifies the critical
// event, and picks the rehab suggestion. The returned packet is complete and
// immutable from the caller's point of view.
func (e *Engine) Process(packet telemetry.SensorPacket) telemetry.ProcessedPacket {
	scores := telemetry.ScoreSet{
		Tremor:   e.scoreOne(e.scorers[0], packet),
		Rigidity: e.scoreOne(e.scorers[1], packet),
		Slowness: e.scoreOne(e.scorers[2], packet),
		Gait:     e.scoreOne(e.scorers[3], packet),
	}
	return telemetry.ProcessedPacket{
		SensorPacket:    packet,
		Scores:          scores,
		Analysis:        telemetry.Analyze(scores),
		CriticalEvent:   telemetry.Classify(packet.Safety, scores),
		RehabSuggestion: telemetry.RehabSuggestion(scores),
	}
}

// scoreOne tries the configured strategy and degrades to the heuristic on any
// model failure. One failed model never aborts the other symptoms.
func (e *Engine) scoreOne(scorer symptomScorer, packet telemetry.SensorPacket) float64 {
	if scorer.strategy != nil {
		value, err := scorer.strategy.Score(packet)
		if err == nil {
			return clampRound(value)
		}
		e.logger.Printf("scoring: %s model failed, using heuristic: %v", scorer.name, err)
		metrics.IncScoringFallback(scorer.name)
	}
	return clampRound(scorer.heuristic(packet))
}

// Tenseness floor for the rigidity heuristic: both EMG channels must exceed
// it before rigidity registers at all.
const rigidityTensenessThreshold = 5.0

func heuristicTremor(packet telemetry.SensorPacket) float64 {
	if !packet.Tremor.TremorDetected {
		return 0
	}
	return math.Min(1, packet.Tremor.AmplitudeG/30)
}

func heuristicRigidity(packet telemetry.SensorPacket) float64 {
	wrist := packet.Rigidity.EMGWrist
	arm := packet.Rigidity.EMGArm
	if wrist <= rigidityTensenessThreshold || arm <= rigidityTensenessThreshold {
		return 0
	}
	return math.Min(1, ((wrist+arm)/2)/10)
}

// heuristicSlowness scores near 1 for near-zero horizontal motion.
func heuristicSlowness(packet telemetry.SensorPacket) float64 {
	horizontal := math.Sqrt(
		packet.Safety.AccelXG*packet.Safety.AccelXG +
			packet.Safety.AccelYG*packet.Safety.AccelYG)
	return 1 - math.Min(1, horizontal/1.5)
}

// heuristicGait measures deviation from a resting 1g vertical vector.
func heuristicGait(packet telemetry.SensorPacket) float64 {
	if packet.Safety.FallDetected {
		return 1
	}
	deviation := math.Sqrt(
		packet.Safety.AccelXG*packet.Safety.AccelXG +
			packet.Safety.AccelYG*packet.Safety.AccelYG +
			(packet.Safety.AccelZG-1)*(packet.Safety.AccelZG-1))
	return math.Min(1, deviation/2)
}

func clampRound(value float64) float64 {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	return math.Round(value*1000) / 1000
}
