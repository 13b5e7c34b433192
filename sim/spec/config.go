package spec

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration is the typed settings tree of a model specification.
// The named sections are strictly decoded; any other top-level block is an
// entity override (per-disease or per-risk settings) captured in Overrides
// and decoded on demand by the owning component.
type Configuration struct {
	InputData     InputDataConfig      `yaml:"input_data"`
	Interpolation InterpolationConfig  `yaml:"interpolation"`
	Randomness    RandomnessConfig     `yaml:"randomness"`
	Time          TimeConfig           `yaml:"time"`
	Population    PopulationConfig     `yaml:"population"`
	Intervention  InterventionConfig   `yaml:"intervention"`
	Metrics       MetricsConfig        `yaml:"metrics"`
	Overrides     map[string]yaml.Node `yaml:",inline"`
}

// InputDataConfig locates the input-data artifact and fixes the parameter
// draw used for the run.
type InputDataConfig struct {
	Location        string `yaml:"location,omitempty"`
	InputDrawNumber int    `yaml:"input_draw_number"`
	ArtifactPath    string `yaml:"artifact_path,omitempty"`
}

// InterpolationConfig controls demographic-table lookups.
type InterpolationConfig struct {
	Order       int  `yaml:"order"`
	Extrapolate bool `yaml:"extrapolate"`
	Validate    bool `yaml:"validate"`
}

// RandomnessConfig parameterizes the common-random-numbers service.
// KeyColumns name the population columns hashed into each simulant's
// randomness key.
type RandomnessConfig struct {
	MapSize    int      `yaml:"map_size"`
	KeyColumns []string `yaml:"key_columns,flow"`
	RandomSeed int64    `yaml:"random_seed"`
}

// TimeConfig bounds the simulated period. StepSize is in days and may be
// fractional.
type TimeConfig struct {
	Start    SimDate `yaml:"start"`
	End      SimDate `yaml:"end"`
	StepSize float64 `yaml:"step_size"`
}

// SimDate is a calendar date spelled out the way model specifications
// write them.
type SimDate struct {
	Year  int `yaml:"year"`
	Month int `yaml:"month"`
	Day   int `yaml:"day"`
}

// Time returns the date at UTC midnight.
func (d SimDate) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether the date was never set.
func (d SimDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d SimDate) validate(name string) error {
	if d.IsZero() {
		return fmt.Errorf("%s is required", name)
	}
	if d.Month < 1 || d.Month > 12 {
		return fmt.Errorf("%s.month must be in [1, 12], got %d", name, d.Month)
	}
	if d.Day < 1 || d.Day > 31 {
		return fmt.Errorf("%s.day must be in [1, 31], got %d", name, d.Day)
	}
	if d.Time().Day() != d.Day {
		return fmt.Errorf("%s: %04d-%02d-%02d is not a calendar date", name, d.Year, d.Month, d.Day)
	}
	return nil
}

// PopulationConfig sizes the starting cohort and bounds tracked ages.
// ExitAge and UntrackingAge are optional; when only ExitAge is given it
// also serves as the untracking age.
type PopulationConfig struct {
	PopulationSize int      `yaml:"population_size"`
	AgeStart       float64  `yaml:"age_start"`
	AgeEnd         float64  `yaml:"age_end"`
	ExitAge        *float64 `yaml:"exit_age,omitempty"`
	UntrackingAge  *float64 `yaml:"untracking_age,omitempty"`
}

// UntrackAt returns the age past which simulants stop being observed, and
// whether one is configured.
func (p PopulationConfig) UntrackAt() (float64, bool) {
	if p.UntrackingAge != nil {
		return *p.UntrackingAge, true
	}
	if p.ExitAge != nil {
		return *p.ExitAge, true
	}
	return 0, false
}

// InterventionConfig selects the scenario the run models.
type InterventionConfig struct {
	Scenario string `yaml:"scenario"`
}

// MetricsConfig holds one stratification block per observed entity, keyed
// the way observers name themselves: "mortality", "disability", or the
// cause/risk name passed to a disease or risk observer.
type MetricsConfig map[string]ObserverMetrics

// ObserverMetrics is the per-observer stratification switchboard.
type ObserverMetrics struct {
	ByAge  bool `yaml:"by_age"`
	BySex  bool `yaml:"by_sex"`
	ByYear bool `yaml:"by_year"`
}

// Valid value registries.
var (
	validScenarios = map[string]bool{
		"baseline": true, "wasting_treatment": true, "sqlns": true,
	}
	validInterpolationOrders = map[int]bool{
		0: true, 1: true,
	}
)

// ValidScenario reports whether name is a recognized intervention scenario.
func ValidScenario(name string) bool {
	return validScenarios[name]
}

// DefaultConfiguration returns the framework defaults a model specification
// overlays. A specification must still supply time bounds and a population
// size.
func DefaultConfiguration() Configuration {
	return Configuration{
		Interpolation: InterpolationConfig{Order: 0, Extrapolate: true, Validate: true},
		Randomness:    RandomnessConfig{MapSize: 1_000_000, KeyColumns: []string{"entrance_time"}},
		Time:          TimeConfig{StepSize: 1},
		Intervention:  InterventionConfig{Scenario: "baseline"},
		Metrics:       MetricsConfig{},
	}
}

// Validate checks every typed section. Entity override blocks are validated
// by the components that consume them.
func (c *Configuration) Validate() error {
	if !validInterpolationOrders[c.Interpolation.Order] {
		return fmt.Errorf("interpolation.order must be 0 or 1, got %d", c.Interpolation.Order)
	}
	if c.Randomness.MapSize <= 0 {
		return fmt.Errorf("randomness.map_size must be positive, got %d", c.Randomness.MapSize)
	}
	if len(c.Randomness.KeyColumns) == 0 {
		return fmt.Errorf("randomness.key_columns must not be empty")
	}
	seen := make(map[string]bool, len(c.Randomness.KeyColumns))
	for _, col := range c.Randomness.KeyColumns {
		if col == "" {
			return fmt.Errorf("randomness.key_columns contains an empty column name")
		}
		if seen[col] {
			return fmt.Errorf("randomness.key_columns repeats %q", col)
		}
		seen[col] = true
	}
	if err := c.Time.validate(); err != nil {
		return err
	}
	if err := c.Population.validate(); err != nil {
		return err
	}
	if !validScenarios[c.Intervention.Scenario] {
		return fmt.Errorf("intervention.scenario %q unknown; valid: baseline, wasting_treatment, sqlns", c.Intervention.Scenario)
	}
	return nil
}

func (t TimeConfig) validate() error {
	if err := t.Start.validate("time.start"); err != nil {
		return err
	}
	if err := t.End.validate("time.end"); err != nil {
		return err
	}
	if !t.Start.Time().Before(t.End.Time()) {
		return fmt.Errorf("time.start %s must precede time.end %s",
			t.Start.Time().Format("2006-01-02"), t.End.Time().Format("2006-01-02"))
	}
	if t.StepSize <= 0 {
		return fmt.Errorf("time.step_size must be positive, got %f", t.StepSize)
	}
	return nil
}

func (p PopulationConfig) validate() error {
	if p.PopulationSize <= 0 {
		return fmt.Errorf("population.population_size must be positive, got %d", p.PopulationSize)
	}
	if p.AgeStart < 0 {
		return fmt.Errorf("population.age_start must be non-negative, got %f", p.AgeStart)
	}
	if p.AgeStart > p.AgeEnd {
		return fmt.Errorf("population.age_start %f must not exceed age_end %f", p.AgeStart, p.AgeEnd)
	}
	if p.ExitAge != nil && *p.ExitAge < p.AgeEnd {
		return fmt.Errorf("population.exit_age %f must be at least age_end %f", *p.ExitAge, p.AgeEnd)
	}
	if p.UntrackingAge != nil && *p.UntrackingAge < p.AgeEnd {
		return fmt.Errorf("population.untracking_age %f must be at least age_end %f", *p.UntrackingAge, p.AgeEnd)
	}
	return nil
}

// DecodeOverride decodes the named entity override block into out.
// Returns false when the specification has no such block.
func (c *Configuration) DecodeOverride(name string, out interface{}) (bool, error) {
	node, ok := c.Overrides[name]
	if !ok {
		return false, nil
	}
	if err := node.Decode(out); err != nil {
		return false, fmt.Errorf("configuration.%s: %w", name, err)
	}
	return true, nil
}
