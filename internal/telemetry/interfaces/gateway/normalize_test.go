package gateway

import (
	"strings"
	"testing"
	"time"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func validRaw() map[string]any {
	return map[string]any{
		"timestamp": "2026-03-14T09:30:00Z",
		"safety": map[string]any{
			"fall_detected": false,
			"accel_x_g":     0.1,
			"accel_y_g":     0.2,
			"accel_z_g":     0.98,
		},
		"tremor": map[string]any{
			"frequency_hz":    4.5,
			"amplitude_g":     12.0,
			"tremor_detected": true,
		},
		"rigidity": map[string]any{
			"emg_wrist": 3.2,
			"emg_arm":   2.8,
			"rigid":     false,
		},
	}
}

func TestNormalizeStringBooleans(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	cases := []struct {
		raw  string
		want bool
	}{
		{"yes", true},
		{"YES", true},
		{"True", true},
		{"1", true},
		{" true ", true},
		{"no", false},
		{"0", false},
		{"maybe", false},
	}
	for _, tc := range cases {
		raw := validRaw()
		raw["tremor"].(map[string]any)["tremor_detected"] = tc.raw
		packet, err := ParsePacket(Normalize(raw, clock))
		if err != nil {
			t.Fatalf("parse after normalizing %q: %v", tc.raw, err)
		}
		if packet.Tremor.TremorDetected != tc.want {
			t.Fatalf("normalizing %q: expected %v, got %v", tc.raw, tc.want, packet.Tremor.TremorDetected)
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	raw := validRaw()
	raw["rigidity"].(map[string]any)["rigid"] = "yes"
	Normalize(raw, clock)
	if got := raw["rigidity"].(map[string]any)["rigid"]; got != "yes" {
		t.Fatalf("input document mutated: rigid=%v", got)
	}
}

func TestExpandShortTimestamp(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)}
	raw := validRaw()
	raw["timestamp"] = "08:45"
	packet, err := ParsePacket(Normalize(raw, clock))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if packet.Timestamp != "2026-03-14T08:45:00Z" {
		t.Fatalf("expected expanded timestamp, got %s", packet.Timestamp)
	}

	// Normalizing the expanded value again is a no-op.
	raw["timestamp"] = packet.Timestamp
	again, err := ParsePacket(Normalize(raw, clock))
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if again.Timestamp != packet.Timestamp {
		t.Fatalf("expected idempotent normalization, got %s", again.Timestamp)
	}
}

func TestFullTimestampPassesThrough(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	raw := validRaw()
	packet, err := ParsePacket(Normalize(raw, clock))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if packet.Timestamp != "2026-03-14T09:30:00Z" {
		t.Fatalf("expected timestamp untouched, got %s", packet.Timestamp)
	}
}

func TestMalformedShortTimestampPassesThrough(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	for _, ts := range []string{"8:450", "ab:cd", "25:99"} {
		raw := validRaw()
		raw["timestamp"] = ts
		normalized := Normalize(raw, clock)
		if normalized["timestamp"] != ts {
			t.Fatalf("expected %q untouched, got %v", ts, normalized["timestamp"])
		}
	}
}

func TestParsePacketFieldErrors(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}

	t.Run("missing section", func(t *testing.T) {
		raw := validRaw()
		delete(raw, "rigidity")
		_, err := ParsePacket(Normalize(raw, clock))
		if err == nil || !strings.Contains(err.Error(), "rigidity") {
			t.Fatalf("expected rigidity error, got %v", err)
		}
	})

	t.Run("wrong number type", func(t *testing.T) {
		raw := validRaw()
		raw["tremor"].(map[string]any)["amplitude_g"] = "high"
		_, err := ParsePacket(Normalize(raw, clock))
		if err == nil || !strings.Contains(err.Error(), "tremor.amplitude_g") {
			t.Fatalf("expected tremor.amplitude_g error, got %v", err)
		}
	})

	t.Run("missing field", func(t *testing.T) {
		raw := validRaw()
		delete(raw["safety"].(map[string]any), "accel_z_g")
		_, err := ParsePacket(Normalize(raw, clock))
		if err == nil || !strings.Contains(err.Error(), "safety.accel_z_g") {
			t.Fatalf("expected safety.accel_z_g error, got %v", err)
		}
	})

	t.Run("empty timestamp", func(t *testing.T) {
		raw := validRaw()
		raw["timestamp"] = ""
		_, err := ParsePacket(Normalize(raw, clock))
		if err == nil || !strings.Contains(err.Error(), "timestamp") {
			t.Fatalf("expected timestamp error, got %v", err)
		}
	})
}
