package artifact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViewCachesLookups(t *testing.T) {
	ctx := context.Background()
	store := tempStore(t)
	require.NoError(t, store.WriteRows(ctx, "cause.flu.incidence_rate", 0, []Row{
		scalarRow("Both", 0, 5, 2020, 2026, 1.2),
	}))
	require.NoError(t, store.WriteRows(ctx, "risk_factor.wasting.exposure", 0, []Row{
		catRow("cat1", 0.3),
		catRow("cat2", 0.7),
	}))

	v := NewView(store, 0, 0, true)
	l1, err := v.Lookup(ctx, "cause.flu.incidence_rate")
	require.NoError(t, err)
	l2, err := v.Lookup(ctx, "cause.flu.incidence_rate")
	require.NoError(t, err)
	require.Same(t, l1, l2)
	require.Equal(t, "cause.flu.incidence_rate", l1.Key())

	c1, err := v.CategoryLookup(ctx, "risk_factor.wasting.exposure")
	require.NoError(t, err)
	c2, err := v.CategoryLookup(ctx, "risk_factor.wasting.exposure")
	require.NoError(t, err)
	require.Same(t, c1, c2)

	_, err = v.Lookup(ctx, "cause.nowhere.incidence_rate")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestViewPinsDraw(t *testing.T) {
	ctx := context.Background()
	store := tempStore(t)
	key := "cause.flu.incidence_rate"
	require.NoError(t, store.WriteRows(ctx, key, 0, []Row{scalarRow("Both", 0, 5, 2020, 2026, 1)}))
	require.NoError(t, store.WriteRows(ctx, key, 4, []Row{scalarRow("Both", 0, 5, 2020, 2026, 2)}))

	pinned := NewView(store, 4, 0, true)
	require.Equal(t, 4, pinned.Draw())
	l, err := pinned.Lookup(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 2.0, l.At("Male", 1, 2022))

	// A draw the table does not carry falls back to draw 0.
	other := NewView(store, 1, 0, true)
	l, err = other.Lookup(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 1.0, l.At("Male", 1, 2022))
}

func TestViewScalar(t *testing.T) {
	ctx := context.Background()
	store := tempStore(t)
	require.NoError(t, store.WriteRows(ctx, "population.crude_birth_rate", 0, []Row{
		scalarRow("Both", 0, 125, 2020, 2026, 31.9),
	}))
	require.NoError(t, store.WriteRows(ctx, "population.structure", 0, []Row{
		scalarRow("Male", 0, 5, 2020, 2026, 5000),
		scalarRow("Female", 0, 5, 2020, 2026, 5000),
	}))

	v := NewView(store, 0, 0, true)
	got, err := v.Scalar(ctx, "population.crude_birth_rate")
	require.NoError(t, err)
	require.Equal(t, 31.9, got)

	_, err = v.Scalar(ctx, "population.structure")
	require.ErrorContains(t, err, "want a single scalar")
}

func TestViewAgeBins(t *testing.T) {
	ctx := context.Background()
	store := tempStore(t)
	v := NewView(store, 0, 0, true)

	_, err := v.AgeBins(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	bins := []AgeBin{
		{Name: "early_neonatal", Start: 0, End: 7.0 / 365.0},
		{Name: "post_neonatal", Start: 28.0 / 365.0, End: 1},
	}
	require.NoError(t, store.WriteMeta(ctx, AgeBinsKey, bins))

	got, err := v.AgeBins(ctx)
	require.NoError(t, err)
	require.Equal(t, bins, got)
}
