package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestLoadAndPredict(t *testing.T) {
	path := writeArtifact(t, `{
		"version": "2024.1",
		"features": ["emg_wrist_rms", "emg_arm_rms"],
		"weights": [0.1, 0.2],
		"bias": 0.05
	}`)
	artifact, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if artifact.Version != "2024.1" {
		t.Fatalf("expected version 2024.1, got %s", artifact.Version)
	}

	value, err := artifact.Predict(map[string]float64{
		"emg_wrist_rms": 2,
		"emg_arm_rms":   3,
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	want := 0.05 + 0.1*2 + 0.2*3
	if value != want {
		t.Fatalf("expected %v, got %v", want, value)
	}
}

func TestLoadRejectsLengthMismatch(t *testing.T) {
	path := writeArtifact(t, `{"features": ["a", "b"], "weights": [0.1]}`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "weights") {
		t.Fatalf("expected length mismatch error, got %v", err)
	}
}

func TestLoadRejectsEmptyFeatures(t *testing.T) {
	path := writeArtifact(t, `{"features": [], "weights": []}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty feature list")
	}
}

func TestPredictMissingFeature(t *testing.T) {
	artifact := &Artifact{Features: []string{"emg_ratio"}, Weights: []float64{1}}
	if _, err := artifact.Predict(map[string]float64{}); err == nil || !strings.Contains(err.Error(), "emg_ratio") {
		t.Fatalf("expected missing feature error, got %v", err)
	}
}
