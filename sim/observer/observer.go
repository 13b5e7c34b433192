// Package observer holds the metrics components. Observers accumulate
// named result columns over the run and contribute them to the final
// observation, stratified by calendar year, sex, and age group as the
// configuration's metrics blocks request.
package observer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
)

// strata resolves result column labels for one observer. Each observer
// binds the metrics block matching its entity key; when the block is
// absent the observer reports unstratified totals.
type strata struct {
	byAge  bool
	bySex  bool
	byYear bool

	bins []artifact.AgeBin
}

func newStrata(b *sim.Builder, key string) (*strata, error) {
	s := &strata{}
	m, ok := b.Config().Metrics[key]
	if !ok {
		return s, nil
	}
	s.byAge, s.bySex, s.byYear = m.ByAge, m.BySex, m.ByYear
	if !s.byAge {
		return s, nil
	}
	data, err := b.Data()
	if err != nil {
		return nil, err
	}
	if s.bins, err = data.AgeBins(b.Context()); err != nil {
		return nil, fmt.Errorf("loading age grouping: %w", err)
	}
	if len(s.bins) == 0 {
		return nil, fmt.Errorf("artifact carries an empty age grouping")
	}
	return s, nil
}

// label appends the requested stratification suffixes to a measure name,
// in year, sex, age group order.
func (s *strata) label(measure string, year int, sex string, age float64) string {
	if s.byYear {
		measure += "_in_" + strconv.Itoa(year)
	}
	if s.bySex {
		measure += "_among_" + strings.ToLower(sex)
	}
	if s.byAge {
		measure += "_in_age_group_" + s.binName(age)
	}
	return measure
}

// binName maps an age onto the artifact age grouping. Ages past the last
// bin clamp into it so simulants at the cohort boundary keep a stratum.
func (s *strata) binName(age float64) string {
	for _, bin := range s.bins {
		if age < bin.End {
			return bin.Name
		}
	}
	return s.bins[len(s.bins)-1].Name
}

// counts accumulates labeled columns step by step until Report moves
// them onto the observation.
type counts map[string]float64

func (c counts) add(label string, v float64) { c[label] += v }

func (c counts) report(obs *sim.Observation) {
	for label, v := range c {
		obs.Add(label, v)
	}
}
