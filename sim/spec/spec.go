// Package spec defines the model specification: the YAML document that
// declares which components a simulation run instantiates and the
// configuration tree that parameterizes them. Parsing is strict, component
// order is preserved, and a parsed specification re-encodes to an
// equivalent document.
package spec

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ModelSpec is a parsed model specification. A specification document has
// exactly two top-level keys: components and configuration.
type ModelSpec struct {
	Components    ComponentTree `yaml:"components"`
	Configuration Configuration `yaml:"configuration"`
}

// Load reads and parses a model specification file.
func Load(path string) (*ModelSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model specification: %w", err)
	}
	ms, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ms, nil
}

// Parse decodes a model specification document over the framework
// defaults. Uses strict parsing: unrecognized keys inside typed sections
// and unknown top-level keys are rejected.
func Parse(data []byte) (*ModelSpec, error) {
	ms := &ModelSpec{Configuration: DefaultConfiguration()}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(ms); err != nil {
		return nil, fmt.Errorf("parsing model specification: %w", err)
	}
	return ms, nil
}

// Save writes the specification to path in canonical form.
func (s *ModelSpec) Save(path string) error {
	data, err := s.Canonical()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing model specification: %w", err)
	}
	return nil
}

// Encode writes the specification as YAML. Component order is the document
// order the specification was parsed with.
func (s *ModelSpec) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(4)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding model specification: %w", err)
	}
	return enc.Close()
}

// Canonical returns the canonical YAML encoding. Parsing the result yields
// a specification equivalent to s.
func (s *ModelSpec) Canonical() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks the structural invariants of the specification: a
// non-empty component manifest, consistent typed configuration sections,
// and a declared observer behind every metrics stratification block.
func (s *ModelSpec) Validate() error {
	if s.Components.IsEmpty() {
		return fmt.Errorf("components: at least one component is required")
	}
	if err := s.Configuration.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	keys := make([]string, 0, len(s.Configuration.Metrics))
	for key := range s.Configuration.Metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !s.declaresObserverFor(key) {
			return fmt.Errorf("configuration.metrics.%s: no declared observer component observes it", key)
		}
	}
	return nil
}

// declaresObserverFor reports whether the manifest declares an observer
// matching a metrics block key. The mortality and disability blocks bind
// to their dedicated observers; any other key binds to a disease or
// categorical risk observer constructed with that entity name.
func (s *ModelSpec) declaresObserverFor(key string) bool {
	switch key {
	case "mortality":
		return s.Components.Declares("MortalityObserver", "")
	case "disability":
		return s.Components.Declares("DisabilityObserver", "")
	default:
		return s.Components.Declares("DiseaseObserver", key) ||
			s.Components.Declares("CategoricalRiskObserver", key)
	}
}
