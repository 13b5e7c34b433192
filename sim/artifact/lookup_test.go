package artifact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func scalarRow(sex string, a0, a1 float64, y0, y1 int, v float64) Row {
	return Row{Sex: sex, AgeStart: a0, AgeEnd: a1, YearStart: y0, YearEnd: y1, Value: v}
}

func catRow(cat string, v float64) Row {
	return Row{Sex: "Both", AgeStart: 0, AgeEnd: 5, YearStart: 2020, YearEnd: 2026, Parameter: cat, Value: v}
}

func TestLookupOrderZero(t *testing.T) {
	rows := []Row{
		scalarRow("Male", 0, 1, 2020, 2026, 10),
		scalarRow("Male", 1, 5, 2020, 2026, 20),
		scalarRow("Female", 0, 1, 2020, 2026, 11),
		scalarRow("Female", 1, 5, 2020, 2026, 21),
	}
	l, err := NewLookup("cause.flu.incidence_rate", rows, 0, true)
	require.NoError(t, err)

	require.Equal(t, 10.0, l.At("Male", 0.5, 2022))
	require.Equal(t, 20.0, l.At("Male", 1.0, 2022), "age bins are closed-open")
	require.Equal(t, 11.0, l.At("Female", 0.0, 2022))
	require.Equal(t, 21.0, l.At("Female", 3.0, 2025.5))
}

func TestLookupBothSexRowsMatchAnySex(t *testing.T) {
	l, err := NewLookup("cause.flu.remission_rate", []Row{
		scalarRow("Both", 0, 5, 2020, 2026, 36.5),
	}, 0, true)
	require.NoError(t, err)
	require.Equal(t, 36.5, l.At("Male", 2, 2022))
	require.Equal(t, 36.5, l.At("Female", 2, 2022))
}

func TestLookupYearSpans(t *testing.T) {
	rows := []Row{
		scalarRow("Both", 0, 5, 2020, 2023, 1),
		scalarRow("Both", 0, 5, 2023, 2026, 2),
	}
	l, err := NewLookup("cause.flu.incidence_rate", rows, 0, true)
	require.NoError(t, err)

	require.Equal(t, 1.0, l.At("Male", 1, 2020.0))
	require.Equal(t, 1.0, l.At("Male", 1, 2022.9))
	require.Equal(t, 2.0, l.At("Male", 1, 2024.5))

	// Outside the table's span the nearest year span wins.
	require.Equal(t, 1.0, l.At("Male", 1, 2010))
	require.Equal(t, 2.0, l.At("Male", 1, 2030))
}

func TestLookupExtrapolationClamp(t *testing.T) {
	rows := []Row{
		scalarRow("Both", 0, 1, 2020, 2026, 10),
		scalarRow("Both", 1, 5, 2020, 2026, 20),
	}

	clamped, err := NewLookup("cause.flu.excess_mortality_rate", rows, 0, true)
	require.NoError(t, err)
	require.Equal(t, 20.0, clamped.At("Male", 7, 2022), "ages past the last bin clamp to it")

	strict, err := NewLookup("cause.flu.excess_mortality_rate", rows, 0, false)
	require.NoError(t, err)
	require.Panics(t, func() { strict.At("Male", 7, 2022) })
	require.Panics(t, func() { strict.At("Male", 1, 2030) })
}

func TestLookupLinearInterpolation(t *testing.T) {
	rows := []Row{
		scalarRow("Both", 0, 1, 2020, 2026, 10),
		scalarRow("Both", 1, 2, 2020, 2026, 20),
		scalarRow("Both", 2, 4, 2020, 2026, 40),
	}
	l, err := NewLookup("population.life_expectancy", rows, 1, true)
	require.NoError(t, err)

	// Interpolation runs between bin midpoints at 0.5, 1.5 and 3.0;
	// outside the outermost midpoints the edge values hold.
	require.Equal(t, 10.0, l.At("Male", 0.2, 2022))
	require.InDelta(t, 15.0, l.At("Male", 1.0, 2022), 1e-12)
	require.Equal(t, 20.0, l.At("Male", 1.5, 2022))
	require.InDelta(t, 30.0, l.At("Male", 2.25, 2022), 1e-12)
	require.Equal(t, 40.0, l.At("Male", 3.5, 2022))
	require.Equal(t, 40.0, l.At("Male", 10, 2022))
}

func TestLookupRejectsBadTables(t *testing.T) {
	_, err := NewLookup("cause.flu.incidence_rate", nil, 0, true)
	require.ErrorContains(t, err, "is empty")

	_, err = NewLookup("risk_factor.wasting.exposure", []Row{catRow("cat1", 1)}, 0, true)
	require.ErrorContains(t, err, "is categorical")

	l, err := NewLookup("cause.flu.incidence_rate", []Row{scalarRow("Male", 0, 5, 2020, 2026, 1)}, 0, true)
	require.NoError(t, err)
	require.Panics(t, func() { l.At("Female", 1, 2022) })
}

func TestCategoryLookup(t *testing.T) {
	rows := []Row{
		catRow("cat10", 0.1),
		catRow("cat2", 0.2),
		catRow("cat1", 0.7),
	}
	cl, err := NewCategoryLookup("risk_factor.wasting.exposure", rows, 0, true)
	require.NoError(t, err)

	require.Equal(t, []string{"cat1", "cat2", "cat10"}, cl.Categories(), "gbd categories sort numerically")

	out := cl.At("Male", 1, 2022, nil)
	require.Equal(t, []float64{0.7, 0.2, 0.1}, out)

	// A too-small buffer is regrown, a big enough one is reused.
	buf := make([]float64, 0, 8)
	out = cl.At("Female", 1, 2022, buf)
	require.Equal(t, []float64{0.7, 0.2, 0.1}, out)
	require.Equal(t, 8, cap(out))

	v, err := cl.Value("cat2", "Male", 1, 2022)
	require.NoError(t, err)
	require.Equal(t, 0.2, v)
	_, err = cl.Value("cat9", "Male", 1, 2022)
	require.ErrorContains(t, err, `no category "cat9"`)
}

func TestCategoryLookupNamedCategories(t *testing.T) {
	cl, err := NewCategoryLookup("risk_factor.treatment.exposure", []Row{
		catRow("uncovered", 0.6),
		catRow("covered", 0.4),
	}, 0, true)
	require.NoError(t, err)
	require.Equal(t, []string{"covered", "uncovered"}, cl.Categories())
}

func TestCategoryLookupRejectsMixedRows(t *testing.T) {
	_, err := NewCategoryLookup("risk_factor.wasting.exposure", []Row{
		catRow("cat1", 0.5),
		scalarRow("Both", 0, 5, 2020, 2026, 0.5),
	}, 0, true)
	require.ErrorContains(t, err, "mixes scalar and categorical rows")

	_, err = NewCategoryLookup("risk_factor.wasting.exposure", nil, 0, true)
	require.ErrorContains(t, err, "is empty")
}
