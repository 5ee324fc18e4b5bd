package forecast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Artifact is the unit the model store persists: both fitted regressors,
// the four encoders and the exact feature-column order they were trained
// with.
type Artifact struct {
	Version        string         `json:"version"`
	TrainedAt      time.Time      `json:"trained_at"`
	FeatureColumns []string       `json:"feature_columns"`
	Forest         *RandomForest  `json:"random_forest"`
	Boost          *GradientBoost `json:"gradient_boost"`
	Encoders       *EncoderSet    `json:"encoders"`
}

const currentPointer = "current"

// ModelStore keeps artifacts in a directory. Each training run writes a
// new versioned file and atomically re-points "current" at it, so a
// concurrent reader never observes new encoders paired with stale trees.
type ModelStore struct {
	dir string
}

func NewModelStore(dir string) (*ModelStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir %s: %w", dir, err)
	}
	return &ModelStore{dir: dir}, nil
}

func (s *ModelStore) Save(a *Artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	name := fmt.Sprintf("artifact-%s.json", a.Version)
	if err := writeAtomic(filepath.Join(s.dir, name), data); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(s.dir, currentPointer), []byte(name)); err != nil {
		return err
	}
	return nil
}

func (s *ModelStore) Load() (*Artifact, error) {
	pointer, err := os.ReadFile(filepath.Join(s.dir, currentPointer))
	if os.IsNotExist(err) {
		return nil, &ModelNotTrainedError{}
	}
	if err != nil {
		return nil, fmt.Errorf("read model pointer: %w", err)
	}

	name := strings.TrimSpace(string(pointer))
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil, &ModelNotTrainedError{}
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal artifact %s: %w", name, err)
	}
	return &a, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
