package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Artifact is a learned linear model persisted to disk as JSON. The feature
// order in Features matches the weight order in Weights.
type Artifact struct {
	Version  string    `json:"version"`
	Features []string  `json:"features"`
	Weights  []float64 `json:"weights"`
	Bias     float64   `json:"bias"`
}

// Load reads and validates a model artifact from disk.
func Load(path string) (*Artifact, error) {
	if path == "" {
		return nil, errors.New("model: empty artifact path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("model: decode %s: %w", path, err)
	}
	if len(artifact.Features) == 0 {
		return nil, fmt.Errorf("model: %s has no features", path)
	}
	if len(artifact.Features) != len(artifact.Weights) {
		return nil, fmt.Errorf("model: %s has %d features but %d weights", path, len(artifact.Features), len(artifact.Weights))
	}
	return &artifact, nil
}

// Predict computes the model output for a feature vector. Every expected
// feature must be present in the map.
func (a *Artifact) Predict(features map[string]float64) (float64, error) {
	if a == nil {
		return 0, errors.New("model: nil artifact")
	}
	sum := a.Bias
	for i, name := range a.Features {
		value, ok := features[name]
		if !ok {
			return 0, fmt.Errorf("model: missing feature %q", name)
		}
		sum += a.Weights[i] * value
	}
	return sum, nil
}
