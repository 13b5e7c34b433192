package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
)

// File names within an output root.
const (
	ObservationFile = "output.json"
	KeyspaceFile    = "keyspace.yaml"
)

// RunDir returns the directory one run writes into: scenario, then
// draw, then seed.
func RunDir(root, scenario string, draw int, seed int64) string {
	return filepath.Join(root, scenario,
		fmt.Sprintf("draw_%d", draw), fmt.Sprintf("seed_%d", seed))
}

// WriteObservation saves a run's observation under root and returns the
// file path.
func WriteObservation(root string, obs *sim.Observation) (string, error) {
	dir := RunDir(root, obs.Scenario, obs.InputDraw, obs.RandomSeed)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}
	data, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding observation: %w", err)
	}
	path := filepath.Join(dir, ObservationFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing observation: %w", err)
	}
	return path, nil
}

// LoadObservation reads one observation file.
func LoadObservation(path string) (*sim.Observation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading observation: %w", err)
	}
	obs := &sim.Observation{}
	if err := json.Unmarshal(data, obs); err != nil {
		return nil, fmt.Errorf("parsing observation %s: %w", path, err)
	}
	return obs, nil
}

// Scan loads every observation under an output root.
func Scan(root string) ([]*sim.Observation, error) {
	paths, err := filepath.Glob(filepath.Join(root, "*", "draw_*", "seed_*", ObservationFile))
	if err != nil {
		return nil, err
	}
	observations := make([]*sim.Observation, 0, len(paths))
	for _, path := range paths {
		obs, err := LoadObservation(path)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

// Keyspace records the run lattice a batch intends. Aggregation reads
// it to tell missing runs apart from runs that were never planned.
type Keyspace struct {
	Scenarios   []string `yaml:"intervention.scenario"`
	InputDraws  []int    `yaml:"input_draw_number"`
	RandomSeeds []int64  `yaml:"random_seed"`
}

// Write saves the keyspace at the output root, creating it if needed.
func (k *Keyspace) Write(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating output root: %w", err)
	}
	data, err := yaml.Marshal(k)
	if err != nil {
		return fmt.Errorf("encoding keyspace: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, KeyspaceFile), data, 0o644); err != nil {
		return fmt.Errorf("writing keyspace: %w", err)
	}
	return nil
}

// LoadKeyspace reads the keyspace at an output root. A missing file is
// not an error; aggregation then falls back to the scenarios actually
// observed.
func LoadKeyspace(root string) (*Keyspace, error) {
	data, err := os.ReadFile(filepath.Join(root, KeyspaceFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading keyspace: %w", err)
	}
	k := &Keyspace{}
	if err := yaml.Unmarshal(data, k); err != nil {
		return nil, fmt.Errorf("parsing keyspace: %w", err)
	}
	return k, nil
}
