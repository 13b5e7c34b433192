package treatment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/internal/testutil"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
	"github.com/ihmeuw/vivarium-compass-sam/sim/wasting"
)

func treatmentSimulator(t *testing.T, popSize int) *sim.Simulator {
	t.Helper()
	yaml := testutil.SpecYAML(testutil.BuildArtifact(t), []string{
		"BasePopulation()",
		"Mortality()",
		"WastingTreatment('risk_factor.wasting_treatment')",
		"ChildWasting()",
		"SQLNSTreatment()",
	}, nil)
	ms, err := spec.Parse([]byte(yaml))
	require.NoError(t, err)
	if popSize > 0 {
		ms.Configuration.Population.PopulationSize = popSize
	}
	s, err := sim.NewSimulator(ms, sim.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWastingTreatment_CoverageMatchesExposure(t *testing.T) {
	s := treatmentSimulator(t, 3000)
	require.NoError(t, s.Setup(context.Background()))

	coverage := s.Values.Category(wasting.TreatmentCoveragePipeline)
	counts := map[string]int{}
	for i := 0; i < s.Population.Len(); i++ {
		counts[coverage.Value(i)]++
	}
	total := float64(s.Population.Len())
	require.InDelta(t, 0.512, float64(counts[Uncovered])/total, 0.04)
	require.InDelta(t, 0.488, float64(counts[BaselineProgram])/total, 0.04)
	require.Zero(t, counts[AlternativeProgram], "nobody is in the alternative program at baseline")
}

func TestWastingTreatment_RejectsMalformedEntity(t *testing.T) {
	_, err := NewWastingTreatment("wasting_treatment")
	require.Error(t, err)
}

func TestSQLNS_NobodyCoveredAtBaseline(t *testing.T) {
	s := treatmentSimulator(t, 1000)
	require.NoError(t, s.Setup(context.Background()))

	covered := s.Values.Flag(SQLNSCoveragePipeline)
	for i := 0; i < s.Population.Len(); i++ {
		require.False(t, covered.Value(i), "simulant %d covered under baseline coverage of zero", i)
	}
}

func TestSQLNS_BaselineLeavesExposureParametersAlone(t *testing.T) {
	s := treatmentSimulator(t, 500)
	require.NoError(t, s.Setup(context.Background()))

	params := s.Values.Vector(wasting.ExposureParamsPipeline)
	want := map[string]float64{"cat1": 0.03, "cat2": 0.08, "cat3": 0.15, "cat4": 0.74}
	var buf []float64
	for i := 0; i < 50; i++ {
		buf = params.Values(i, buf)
		for cat, w := range want {
			require.InEpsilon(t, w, buf[params.Index(cat)], 1e-12, "category %s", cat)
		}
	}
}

func TestSQLNS_PropensityPipelinePersists(t *testing.T) {
	s := treatmentSimulator(t, 400)
	require.NoError(t, s.Setup(context.Background()))

	propensity := s.Values.Pipeline(SQLNSPropensityPipeline)
	before := make([]float64, s.Population.Len())
	for i := range before {
		p := propensity.Value(i)
		require.GreaterOrEqual(t, p, 0.0)
		require.Less(t, p, 1.0)
		before[i] = p
	}

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	for i, p := range before {
		require.Equal(t, p, propensity.Value(i))
	}
}

func TestComponentNames(t *testing.T) {
	wt, err := NewWastingTreatment("risk_factor.wasting_treatment")
	require.NoError(t, err)
	require.Equal(t, "risk.risk_factor.wasting_treatment", wt.Name())
	require.Equal(t, "prevention_algorithm", NewSQLNSTreatment().Name())
}
