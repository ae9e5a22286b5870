package anomaly

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// Model is an offline-trained linear autoencoder over consumption feature
// vectors. Threshold is the 95th-percentile reconstruction error the model
// produced on a held-out normal sample during training; readings whose error
// exceeds it are flagged.
type Model struct {
	Name      string      `json:"name"`
	Mean      []float64   `json:"mean"`
	Scale     []float64   `json:"scale"`
	Encoder   [][]float64 `json:"encoder"` // latent x features
	Decoder   [][]float64 `json:"decoder"` // features x latent
	Threshold float64     `json:"threshold"`
}

// LoadModel reads and validates a reconstruction model artifact. Missing or
// malformed artifacts are ErrModelUnavailable; the detector degrades to the
// ratio-based fallback.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", types.ErrModelUnavailable, path, err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", types.ErrModelUnavailable, path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrModelUnavailable, path, err)
	}
	return &m, nil
}

func (m *Model) validate() error {
	features := len(m.Mean)
	if features == 0 {
		return fmt.Errorf("empty feature means")
	}
	if len(m.Scale) != features {
		return fmt.Errorf("scale length %d != %d features", len(m.Scale), features)
	}
	if len(m.Encoder) == 0 || len(m.Decoder) != features {
		return fmt.Errorf("encoder/decoder shape mismatch")
	}
	for _, row := range m.Encoder {
		if len(row) != features {
			return fmt.Errorf("encoder row length %d != %d features", len(row), features)
		}
	}
	latent := len(m.Encoder)
	for _, row := range m.Decoder {
		if len(row) != latent {
			return fmt.Errorf("decoder row length %d != %d latent", len(row), latent)
		}
	}
	if m.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive")
	}
	return nil
}

// Features returns the model's expected feature count.
func (m *Model) Features() int { return len(m.Mean) }

// ReconstructionError standardizes the feature vector, encodes, decodes, and
// returns the root-mean-square reconstruction error. Deterministic for
// identical input and artifact.
func (m *Model) ReconstructionError(features []float64) float64 {
	n := len(m.Mean)
	std := make([]float64, n)
	for i := 0; i < n; i++ {
		s := m.Scale[i]
		if s == 0 {
			s = 1
		}
		std[i] = (features[i] - m.Mean[i]) / s
	}

	latent := make([]float64, len(m.Encoder))
	for j, row := range m.Encoder {
		var sum float64
		for i, w := range row {
			sum += w * std[i]
		}
		latent[j] = sum
	}

	var sse float64
	for i, row := range m.Decoder {
		var rec float64
		for j, w := range row {
			rec += w * latent[j]
		}
		d := rec - std[i]
		sse += d * d
	}
	return math.Sqrt(sse / float64(n))
}
