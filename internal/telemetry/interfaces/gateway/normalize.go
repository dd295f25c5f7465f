package gateway

import (
	"fmt"
	"strings"
	"time"

	telemetry "stancesense-cloud/internal/telemetry/domain"
)

// Clock provides time for timestamp expansion.
type Clock interface {
	Now() time.Time
}

// Normalize canonicalizes legacy field encodings in a raw packet document.
// String booleans ("yes"/"true"/"1", case-insensitive) become real booleans
// and a bare "HH:MM" timestamp expands to today's UTC instant. Normalization
// never rejects a packet; only ParsePacket can fail it.
func Normalize(raw map[string]any, clock Clock) map[string]any {
	packet := make(map[string]any, len(raw))
	for key, value := range raw {
		packet[key] = value
	}

	normalizeBool(packet, "tremor", "tremor_detected")
	normalizeBool(packet, "rigidity", "rigid")
	normalizeBool(packet, "safety", "fall_detected")

	if ts, ok := packet["timestamp"].(string); ok {
		packet["timestamp"] = expandTimestamp(ts, clock)
	}
	return packet
}

func normalizeBool(packet map[string]any, section, field string) {
	sub, ok := packet[section].(map[string]any)
	if !ok {
		return
	}
	raw, ok := sub[field].(string)
	if !ok {
		return
	}
	out := make(map[string]any, len(sub))
	for key, value := range sub {
		out[key] = value
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "1":
		out[field] = true
	default:
		out[field] = false
	}
	packet[section] = out
}

// expandTimestamp turns a short "HH:MM" time into an RFC 3339 UTC instant on
// today's date. Anything else passes through unchanged.
func expandTimestamp(ts string, clock Clock) string {
	if len(ts) != 5 || strings.Count(ts, ":") != 1 {
		return ts
	}
	parsed, err := time.Parse("15:04", ts)
	if err != nil {
		return ts
	}
	now := clock.Now().UTC()
	instant := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
	return instant.Format(time.RFC3339)
}

// ParsePacket strictly validates a normalized document into a SensorPacket.
// The returned error names the first offending field.
func ParsePacket(packet map[string]any) (telemetry.SensorPacket, error) {
	var out telemetry.SensorPacket

	ts, err := stringField(packet, "timestamp")
	if err != nil {
		return out, err
	}
	out.Timestamp = ts

	if raw, ok := packet["device_id"]; ok {
		deviceID, ok := raw.(string)
		if !ok {
			return out, fmt.Errorf("device_id: expected string, got %T", raw)
		}
		out.DeviceID = deviceID
	}

	safety, err := section(packet, "safety")
	if err != nil {
		return out, err
	}
	if out.Safety.FallDetected, err = boolField(safety, "safety", "fall_detected"); err != nil {
		return out, err
	}
	if out.Safety.AccelXG, err = floatField(safety, "safety", "accel_x_g"); err != nil {
		return out, err
	}
	if out.Safety.AccelYG, err = floatField(safety, "safety", "accel_y_g"); err != nil {
		return out, err
	}
	if out.Safety.AccelZG, err = floatField(safety, "safety", "accel_z_g"); err != nil {
		return out, err
	}

	tremor, err := section(packet, "tremor")
	if err != nil {
		return out, err
	}
	if out.Tremor.FrequencyHz, err = floatField(tremor, "tremor", "frequency_hz"); err != nil {
		return out, err
	}
	if out.Tremor.AmplitudeG, err = floatField(tremor, "tremor", "amplitude_g"); err != nil {
		return out, err
	}
	if out.Tremor.TremorDetected, err = boolField(tremor, "tremor", "tremor_detected"); err != nil {
		return out, err
	}

	rigidity, err := section(packet, "rigidity")
	if err != nil {
		return out, err
	}
	if out.Rigidity.EMGWrist, err = floatField(rigidity, "rigidity", "emg_wrist"); err != nil {
		return out, err
	}
	if out.Rigidity.EMGArm, err = floatField(rigidity, "rigidity", "emg_arm"); err != nil {
		return out, err
	}
	if out.Rigidity.Rigid, err = boolField(rigidity, "rigidity", "rigid"); err != nil {
		return out, err
	}

	return out, nil
}

func section(packet map[string]any, name string) (map[string]any, error) {
	raw, ok := packet[name]
	if !ok {
		return nil, fmt.Errorf("%s: required object missing", name)
	}
	sub, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected object, got %T", name, raw)
	}
	return sub, nil
}

func stringField(packet map[string]any, name string) (string, error) {
	raw, ok := packet[name]
	if !ok {
		return "", fmt.Errorf("%s: required field missing", name)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", name, raw)
	}
	if value == "" {
		return "", fmt.Errorf("%s: must not be empty", name)
	}
	return value, nil
}

func floatField(sub map[string]any, sectionName, name string) (float64, error) {
	raw, ok := sub[name]
	if !ok {
		return 0, fmt.Errorf("%s.%s: required field missing", sectionName, name)
	}
	switch value := raw.(type) {
	case float64:
		return value, nil
	case int:
		return float64(value), nil
	default:
		return 0, fmt.Errorf("%s.%s: expected number, got %T", sectionName, name, raw)
	}
}

func boolField(sub map[string]any, sectionName, name string) (bool, error) {
	raw, ok := sub[name]
	if !ok {
		return false, fmt.Errorf("%s.%s: required field missing", sectionName, name)
	}
	value, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%s.%s: expected boolean, got %T", sectionName, name, raw)
	}
	return value, nil
}
