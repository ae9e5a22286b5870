package forecast

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// Artifact is an offline-trained sequence model: lag weights plus the RMSE
// the model achieved on its held-out validation split. Stored as JSON so
// training can happen out of process.
type Artifact struct {
	Model          string    `json:"model"`
	Weights        []float64 `json:"weights"`
	Bias           float64   `json:"bias"`
	ValidationRMSE float64   `json:"validationRmse"`
}

// LoadArtifact reads and validates a model artifact. A missing or malformed
// artifact is ErrModelUnavailable: the caller degrades to statistical models
// rather than failing.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", types.ErrModelUnavailable, path, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", types.ErrModelUnavailable, path, err)
	}
	if len(a.Weights) == 0 {
		return nil, fmt.Errorf("%w: %s has no weights", types.ErrModelUnavailable, path)
	}
	if a.Model == "" {
		a.Model = "sequence"
	}
	return &a, nil
}
