package treatment

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/params"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
	"github.com/ihmeuw/vivarium-compass-sam/sim/wasting"
)

// SQ-LNS pipelines. Coverage is sourced from the baseline rule here;
// the scale-up intervention widens it.
const (
	SQLNSPropensityPipeline = "sq_lns.propensity"
	SQLNSCoveragePipeline   = "sq_lns.coverage"

	sqlnsPropensityColumn = "sq_lns_propensity"
)

func init() {
	sim.RegisterComponent("SQLNSTreatment", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("SQLNSTreatment takes no arguments")
		}
		return NewSQLNSTreatment(), nil
	})
}

// SQLNSTreatment supplements covered children with lipid-based
// nutrients, lowering their chance of initializing into, or being
// redistributed toward, the wasted categories. Covered probability mass
// moves from severe and moderate wasting to mild wasting by each
// category's relative risk.
type SQLNSTreatment struct {
	pop *sim.Table
	age sim.FloatCol
	col sim.FloatCol

	stream   *sim.Stream
	coverage *sim.FlagPipeline
	params   *sim.VectorPipeline

	severeRR   float64
	moderateRR float64
}

func NewSQLNSTreatment() *SQLNSTreatment { return &SQLNSTreatment{} }

func (s *SQLNSTreatment) Name() string { return "prevention_algorithm" }

func (s *SQLNSTreatment) Setup(b *sim.Builder) error {
	s.pop = b.Population()

	var err error
	if s.age, err = s.pop.FloatColumn(population.ColAge); err != nil {
		return err
	}
	s.col = s.pop.AddFloatColumn(sqlnsPropensityColumn, 0)
	s.stream = b.Randomness().Stream("initial_" + sqlnsPropensityColumn)
	b.AddSimulantInitializer(func(batch sim.NewSimulants) error {
		for i := batch.Start; i < batch.End; i++ {
			s.col.Set(i, s.stream.Draw(i))
		}
		return nil
	})

	draw := b.Config().InputData.InputDrawNumber
	s.severeRR = params.SQLNSSevereWastingRR.Value(draw)
	s.moderateRR = params.SQLNSModerateWastingRR.Value(draw)

	b.Values().Pipeline(SQLNSPropensityPipeline).SetSource(s.col.Get)

	s.coverage = b.Values().Flag(SQLNSCoveragePipeline)
	s.coverage.SetSource(func(i int) bool {
		return s.col.Get(i) < params.SQLNSCoverageBaseline &&
			s.age.Get(i) >= params.SQLNSCoverageStartAge
	})

	s.params = b.Values().Vector(wasting.ExposureParamsPipeline)
	s.params.AddModifier(s.shift)
	return nil
}

// shift moves a covered simulant's severe and moderate initialization
// mass into mild wasting.
func (s *SQLNSTreatment) shift(i int, vals []float64) {
	if !s.coverage.Value(i) {
		return
	}
	sev := s.params.Index(wasting.CategoryOf(wasting.Severe))
	mod := s.params.Index(wasting.CategoryOf(wasting.Moderate))
	mild := s.params.Index(wasting.CategoryOf(wasting.Mild))
	if sev < 0 || mod < 0 || mild < 0 {
		panic("treatment: wasting exposure parameters are missing the wasted categories")
	}
	severe := vals[sev] * (1 - s.severeRR)
	moderate := vals[mod] * (1 - s.moderateRR)
	vals[sev] -= severe
	vals[mod] -= moderate
	vals[mild] += severe + moderate
}
