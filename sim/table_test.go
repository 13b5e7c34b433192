package sim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableColumnsAndGrowth(t *testing.T) {
	tab := NewTable()
	age := tab.AddFloatColumn("age", 0)
	alive := tab.AddStringColumn("alive", "alive")
	tracked := tab.AddBoolColumn("tracked", true)

	start, end := tab.Grow(3)
	require.Equal(t, 0, start)
	require.Equal(t, 3, end)
	require.Equal(t, 3, tab.Len())

	age.Set(1, 2.5)
	age.Add(1, 0.5)
	alive.Set(2, "dead")
	tracked.Set(0, false)

	require.Equal(t, 3.0, age.Get(1))
	require.Equal(t, 0.0, age.Get(0))
	require.True(t, alive.Is(2, "dead"))
	require.True(t, alive.Is(0, "alive"))
	require.False(t, tracked.Get(0))
	require.True(t, tracked.Get(1))
}

func TestTableGrowFillsDefaults(t *testing.T) {
	tab := NewTable()
	exit := tab.AddFloatColumn("exit_time", -1)
	tab.Grow(2)
	exit.Set(0, 40)

	// Later cohorts start at the column default, earlier rows keep theirs.
	start, end := tab.Grow(2)
	require.Equal(t, 2, start)
	require.Equal(t, 4, end)
	require.Equal(t, 40.0, exit.Get(0))
	require.Equal(t, -1.0, exit.Get(1))
	require.Equal(t, -1.0, exit.Get(2))
	require.Equal(t, -1.0, exit.Get(3))
}

func TestTableColumnLookup(t *testing.T) {
	tab := NewTable()
	tab.AddFloatColumn("age", 0)
	tab.AddStringColumn("sex", "")
	tab.AddBoolColumn("tracked", true)

	_, err := tab.FloatColumn("age")
	require.NoError(t, err)
	_, err = tab.StringColumn("sex")
	require.NoError(t, err)
	_, err = tab.BoolColumn("tracked")
	require.NoError(t, err)

	_, err = tab.FloatColumn("weight")
	require.ErrorContains(t, err, `no float column "weight"`)
	_, err = tab.StringColumn("age")
	require.Error(t, err)

	require.True(t, tab.HasColumn("age"))
	require.False(t, tab.HasColumn("weight"))
}

func TestTableRejectsDuplicateColumns(t *testing.T) {
	tab := NewTable()
	tab.AddFloatColumn("age", 0)
	require.Panics(t, func() { tab.AddFloatColumn("age", 0) })
	require.Panics(t, func() { tab.AddStringColumn("age", "") })
}

func TestTableKeyValue(t *testing.T) {
	tab := NewTable()
	age := tab.AddFloatColumn("age", 0)
	sex := tab.AddStringColumn("sex", "")
	tab.AddBoolColumn("tracked", true)
	tab.Grow(1)
	age.Set(0, 2.25)
	sex.Set(0, "Female")

	cases := []struct {
		column string
		want   string
	}{
		{"age", "2.25"},
		{"sex", "Female"},
		{"tracked", "true"},
	}
	for _, tc := range cases {
		got, err := tab.KeyValue(tc.column, 0)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}

	_, err := tab.KeyValue("weight", 0)
	require.ErrorContains(t, err, `no column "weight"`)
}
