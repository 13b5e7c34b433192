// Package results writes and aggregates simulation outputs. Each run
// saves one observation file under <root>/<scenario>/draw_<n>/seed_<n>/.
// Aggregation scans a root, drops runs whose draw and seed did not
// complete every scenario, sums the remaining seeds within each draw
// and scenario, and renders tidy CSV tables keyed by the stratification
// labels the observers emit.
package results

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ihmeuw/vivarium-compass-sam/sim/wasting"
)

// Table file names the aggregator writes.
const (
	TablePopulation        = "population.csv"
	TableDeaths            = "deaths.csv"
	TableYLLs              = "ylls.csv"
	TableYLDs              = "ylds.csv"
	TableDiseasePersonTime = "disease_state_person_time.csv"
	TableWastingPersonTime = "wasting_state_person_time.csv"
	TableTransitions       = "disease_transition_count.csv"
	TableRiskPersonTime    = "risk_category_person_time.csv"
)

var tableHeaders = map[string][]string{
	TablePopulation:        {"input_draw", "scenario", "measure", "value"},
	TableDeaths:            {"input_draw", "scenario", "cause", "year", "sex", "age_group", "value"},
	TableYLLs:              {"input_draw", "scenario", "cause", "year", "sex", "age_group", "value"},
	TableYLDs:              {"input_draw", "scenario", "cause", "year", "sex", "age_group", "value"},
	TableDiseasePersonTime: {"input_draw", "scenario", "state", "year", "sex", "age_group", "value"},
	TableWastingPersonTime: {"input_draw", "scenario", "state", "year", "sex", "age_group", "value"},
	TableTransitions:       {"input_draw", "scenario", "transition", "year", "sex", "age_group", "value"},
	TableRiskPersonTime:    {"input_draw", "scenario", "risk", "category", "year", "sex", "age_group", "value"},
}

// strata is the parsed stratification of one result column.
type strata struct {
	year, sex, ageGroup string
}

// splitStrata peels the stratification suffixes off a column label in
// the reverse of the order observers append them: age group, sex, year.
// Dimensions the label does not carry come back as "all". A trailing
// "_in_" segment only counts as a year when it parses as an integer.
func splitStrata(label string) (string, strata) {
	st := strata{year: "all", sex: "all", ageGroup: "all"}
	if i := strings.LastIndex(label, "_in_age_group_"); i >= 0 {
		st.ageGroup = label[i+len("_in_age_group_"):]
		label = label[:i]
	}
	if i := strings.LastIndex(label, "_among_"); i >= 0 {
		st.sex = label[i+len("_among_"):]
		label = label[:i]
	}
	if i := strings.LastIndex(label, "_in_"); i >= 0 {
		if _, err := strconv.Atoi(label[i+len("_in_"):]); err == nil {
			st.year = label[i+len("_in_"):]
			label = label[:i]
		}
	}
	return label, st
}

var riskCategory = regexp.MustCompile(`^(.+)_(cat[0-9]+)$`)

// wastingStates routes child wasting person time into its own table.
var wastingStates = map[string]bool{
	wasting.Susceptible: true,
	wasting.Mild:        true,
	wasting.Moderate:    true,
	wasting.Severe:      true,
}

// classify routes a measure to its table and entity columns. Measures
// matching no family land in the population table as named totals.
func classify(measure string) (table string, entity []string) {
	switch {
	case strings.HasPrefix(measure, "death_due_to_"):
		return TableDeaths, []string{strings.TrimPrefix(measure, "death_due_to_")}
	case strings.HasPrefix(measure, "ylls_due_to_"):
		return TableYLLs, []string{strings.TrimPrefix(measure, "ylls_due_to_")}
	case strings.HasPrefix(measure, "ylds_due_to_"):
		return TableYLDs, []string{strings.TrimPrefix(measure, "ylds_due_to_")}
	case strings.HasSuffix(measure, "_event_count"):
		return TableTransitions, []string{strings.TrimSuffix(measure, "_event_count")}
	case strings.HasSuffix(measure, "_person_time"):
		state := strings.TrimSuffix(measure, "_person_time")
		if m := riskCategory.FindStringSubmatch(state); m != nil {
			return TableRiskPersonTime, []string{m[1], m[2]}
		}
		if wastingStates[state] {
			return TableWastingPersonTime, []string{state}
		}
		return TableDiseasePersonTime, []string{state}
	default:
		return TablePopulation, []string{measure}
	}
}
