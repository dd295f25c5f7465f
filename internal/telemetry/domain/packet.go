package telemetry

// SafetyReadings carries fall detection and accelerometer values in g.
type SafetyReadings struct {
	FallDetected bool    `json:"fall_detected"`
	AccelXG      float64 `json:"accel_x_g"`
	AccelYG      float64 `json:"accel_y_g"`
	AccelZG      float64 `json:"accel_z_g"`
}

// TremorReadings carries the tremor sensor channel.
type TremorReadings struct {
	FrequencyHz    float64 `json:"frequency_hz"`
	AmplitudeG     float64 `json:"amplitude_g"`
	TremorDetected bool    `json:"tremor_detected"`
}

// RigidityReadings carries the EMG channel.
type RigidityReadings struct {
	EMGWrist float64 `json:"emg_wrist"`
	EMGArm   float64 `json:"emg_arm"`
	Rigid    bool    `json:"rigid"`
}

// SensorPacket is one timestamped reading from the wearable sensor suite,
// after normalization and strict validation.
type SensorPacket struct {
	Timestamp string           `json:"timestamp"`
	DeviceID  string           `json:"device_id,omitempty"`
	Safety    SafetyReadings   `json:"safety"`
	Tremor    TremorReadings   `json:"tremor"`
	Rigidity  RigidityReadings `json:"rigidity"`
}

// ScoreSet holds the four symptom severity scores, each in [0,1].
type ScoreSet struct {
	Tremor   float64 `json:"tremor"`
	Rigidity float64 `json:"rigidity"`
	Slowness float64 `json:"slowness"`
	Gait     float64 `json:"gait"`
}

// Analysis holds derived booleans and the gait stability score in [0,100].
type Analysis struct {
	IsTremorConfirmed  bool    `json:"is_tremor_confirmed"`
	IsRigid            bool    `json:"is_rigid"`
	GaitStabilityScore float64 `json:"gait_stability_score"`
}

// ProcessedPacket is the enriched packet produced by the scoring engine.
// It is never mutated after creation.
type ProcessedPacket struct {
	SensorPacket
	Scores          ScoreSet `json:"scores"`
	Analysis        Analysis `json:"analysis"`
	CriticalEvent   string   `json:"critical_event,omitempty"`
	RehabSuggestion string   `json:"rehab_suggestion,omitempty"`
}

// Alert is a caregiver-facing alert for a critical event. Created once per
// critical event, persisted and broadcast exactly once.
type Alert struct {
	Timestamp    string          `json:"timestamp"`
	EventType    string          `json:"event_type"`
	Severity     string          `json:"severity"`
	Message      string          `json:"message"`
	DataSnapshot ProcessedPacket `json:"data_snapshot"`
}

// Critical event labels.
const (
	EventFall          = "fall"
	EventRigiditySpike = "rigidity_spike"
	EventTremorSpike   = "tremor_spike"
)

// Alert severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// SeverityFor maps a critical event label to an alert severity.
func SeverityFor(eventType string) string {
	switch eventType {
	case EventFall:
		return SeverityCritical
	case EventRigiditySpike, EventTremorSpike:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
