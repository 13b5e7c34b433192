package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
)

// RunKey groups the runs whose seeds sum together in the aggregate.
type RunKey struct {
	InputDraw int
	Scenario  string
}

// CompleteRuns drops observations whose draw and seed pair is missing
// under any scenario, keeping scenario comparisons on identical
// populations. With no scenario list it uses the scenarios observed.
// Returns the kept observations and the number dropped.
func CompleteRuns(observations []*sim.Observation, scenarios []string) ([]*sim.Observation, int) {
	if len(scenarios) == 0 {
		seen := make(map[string]bool)
		for _, obs := range observations {
			if !seen[obs.Scenario] {
				seen[obs.Scenario] = true
				scenarios = append(scenarios, obs.Scenario)
			}
		}
	}

	type pair struct {
		draw int
		seed int64
	}
	have := make(map[pair]map[string]bool)
	for _, obs := range observations {
		p := pair{obs.InputDraw, obs.RandomSeed}
		if have[p] == nil {
			have[p] = make(map[string]bool)
		}
		have[p][obs.Scenario] = true
	}

	kept := make([]*sim.Observation, 0, len(observations))
	dropped := 0
	for _, obs := range observations {
		ran := have[pair{obs.InputDraw, obs.RandomSeed}]
		complete := true
		for _, s := range scenarios {
			if !ran[s] {
				complete = false
				break
			}
		}
		if complete {
			kept = append(kept, obs)
		} else {
			dropped++
		}
	}
	return kept, dropped
}

// Merge sums result columns across the seeds of each draw and scenario.
func Merge(observations []*sim.Observation) map[RunKey]map[string]float64 {
	merged := make(map[RunKey]map[string]float64)
	for _, obs := range observations {
		key := RunKey{InputDraw: obs.InputDraw, Scenario: obs.Scenario}
		cols := merged[key]
		if cols == nil {
			cols = make(map[string]float64)
			merged[key] = cols
		}
		for label, v := range obs.Columns {
			cols[label] += v
		}
	}
	return merged
}

// WriteTables renders merged results as tidy CSV tables under dir, one
// file per measure family. Every table is written; an empty one carries
// only its header row. Rows sort by draw, scenario, then label.
func WriteTables(dir string, merged map[RunKey]map[string]float64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	keys := make([]RunKey, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].InputDraw != keys[j].InputDraw {
			return keys[i].InputDraw < keys[j].InputDraw
		}
		return keys[i].Scenario < keys[j].Scenario
	})

	rows := make(map[string][][]string)
	for _, key := range keys {
		cols := merged[key]
		labels := make([]string, 0, len(cols))
		for label := range cols {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			measure, st := splitStrata(label)
			table, entity := classify(measure)
			row := []string{strconv.Itoa(key.InputDraw), key.Scenario}
			row = append(row, entity...)
			if table != TablePopulation {
				row = append(row, st.year, st.sex, st.ageGroup)
			}
			row = append(row, strconv.FormatFloat(cols[label], 'g', -1, 64))
			rows[table] = append(rows[table], row)
		}
	}

	tables := make([]string, 0, len(tableHeaders))
	for table := range tableHeaders {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		if err := writeCSV(filepath.Join(dir, table), tableHeaders[table], rows[table]); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			file.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}

// Aggregate scans an output root, drops incomplete runs, and writes the
// tidy tables under dir. Returns how many observations were kept and
// how many dropped.
func Aggregate(root, dir string) (kept, dropped int, err error) {
	observations, err := Scan(root)
	if err != nil {
		return 0, 0, err
	}
	if len(observations) == 0 {
		return 0, 0, fmt.Errorf("no observations under %s", root)
	}
	var scenarios []string
	ks, err := LoadKeyspace(root)
	if err != nil {
		return 0, 0, err
	}
	if ks != nil {
		scenarios = ks.Scenarios
	}
	complete, dropped := CompleteRuns(observations, scenarios)
	if len(complete) == 0 {
		return 0, dropped, fmt.Errorf("no draw and seed pair completed every scenario")
	}
	if err := WriteTables(dir, Merge(complete)); err != nil {
		return 0, dropped, err
	}
	return len(complete), dropped, nil
}
