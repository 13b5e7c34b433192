package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

// randomnessFixture registers n simulants with distinct ages against a
// fresh manager wired the way a run would wire it.
func randomnessFixture(t *testing.T, seed int64, n int) (*RandomnessManager, *Clock) {
	t.Helper()
	clock := testClock(1, 31, 1)
	m := NewRandomnessManager(spec.RandomnessConfig{
		MapSize:    1_000_000,
		KeyColumns: []string{"entrance_time", "age"},
		RandomSeed: seed,
	}, clock)

	tab := NewTable()
	entrance := tab.AddFloatColumn("entrance_time", 0)
	age := tab.AddFloatColumn("age", 0)
	tab.Grow(n)
	for i := 0; i < n; i++ {
		entrance.Set(i, 0)
		age.Set(i, float64(i)*0.01)
	}
	require.NoError(t, m.RegisterSimulants(tab, 0, n))
	return m, clock
}

func TestStreamDrawsAreReproducible(t *testing.T) {
	m1, _ := randomnessFixture(t, 42, 50)
	m2, _ := randomnessFixture(t, 42, 50)
	for i := 0; i < 50; i++ {
		require.Equal(t, m1.Stream("incidence").Draw(i), m2.Stream("incidence").Draw(i))
	}

	other, _ := randomnessFixture(t, 43, 50)
	same := 0
	for i := 0; i < 50; i++ {
		if m1.Stream("incidence").Draw(i) == other.Stream("incidence").Draw(i) {
			same++
		}
	}
	require.Zero(t, same, "changing the seed should change every draw")
}

func TestStreamDrawsAreOrderIndependent(t *testing.T) {
	// A draw is a pure function of (seed, stream, key, step): consuming
	// other streams first must not shift it.
	m1, _ := randomnessFixture(t, 42, 10)
	before := m1.Stream("mortality").Draw(3)
	for i := 0; i < 10; i++ {
		m1.Stream("incidence").Draw(i)
		m1.Stream("wasting").Draw(i)
	}
	require.Equal(t, before, m1.Stream("mortality").Draw(3))

	m2, _ := randomnessFixture(t, 42, 10)
	for i := 9; i >= 0; i-- {
		m2.Stream("incidence").Draw(i)
	}
	require.Equal(t, before, m2.Stream("mortality").Draw(3))
}

func TestStreamsAreDecorrelated(t *testing.T) {
	m, _ := randomnessFixture(t, 42, 100)
	a := m.Stream("incidence")
	b := m.Stream("remission")
	same := 0
	for i := 0; i < 100; i++ {
		require.GreaterOrEqual(t, a.Draw(i), 0.0)
		require.Less(t, a.Draw(i), 1.0)
		if a.Draw(i) == b.Draw(i) {
			same++
		}
	}
	require.Zero(t, same)
}

func TestStreamVariesByStep(t *testing.T) {
	m, clock := randomnessFixture(t, 42, 1)
	s := m.Stream("incidence")
	first := s.Draw(0)
	clock.Advance()
	require.NotEqual(t, first, s.Draw(0))
}

func TestStreamInstanceIsCached(t *testing.T) {
	m, _ := randomnessFixture(t, 42, 1)
	require.Same(t, m.Stream("incidence"), m.Stream("incidence"))
	require.Equal(t, "incidence", m.Stream("incidence").Name())
}

func TestCollidingKeysGetDistinctDraws(t *testing.T) {
	clock := testClock(1, 31, 1)
	m := NewRandomnessManager(spec.RandomnessConfig{
		MapSize:    1_000_000,
		KeyColumns: []string{"entrance_time"},
		RandomSeed: 42,
	}, clock)

	// Every simulant shares one entrance time, so the raw keys collide.
	tab := NewTable()
	tab.AddFloatColumn("entrance_time", 0)
	tab.Grow(20)
	require.NoError(t, m.RegisterSimulants(tab, 0, 20))

	s := m.Stream("incidence")
	seen := make(map[float64]int)
	for i := 0; i < 20; i++ {
		seen[s.Draw(i)]++
	}
	require.Len(t, seen, 20)
}

func TestRegisterSimulantsErrors(t *testing.T) {
	clock := testClock(1, 31, 1)
	tab := NewTable()
	tab.AddFloatColumn("entrance_time", 0)
	tab.Grow(5)

	misaligned := NewRandomnessManager(spec.RandomnessConfig{
		MapSize: 1000, KeyColumns: []string{"entrance_time"}, RandomSeed: 1,
	}, clock)
	require.ErrorContains(t, misaligned.RegisterSimulants(tab, 2, 5), "misaligned")

	missing := NewRandomnessManager(spec.RandomnessConfig{
		MapSize: 1000, KeyColumns: []string{"starting_weight"}, RandomSeed: 1,
	}, clock)
	require.ErrorContains(t, missing.RegisterSimulants(tab, 0, 5), "key_columns")

	ok := NewRandomnessManager(spec.RandomnessConfig{
		MapSize: 1000, KeyColumns: []string{"entrance_time"}, RandomSeed: 1,
	}, clock)
	require.NoError(t, ok.RegisterSimulants(tab, 0, 5))
	require.Equal(t, 5, ok.Registered())
}

func TestDrawPanicsForUnregisteredSimulant(t *testing.T) {
	m, _ := randomnessFixture(t, 42, 3)
	require.Panics(t, func() { m.Stream("incidence").Draw(3) })
}

func TestDrawKeyless(t *testing.T) {
	m1, _ := randomnessFixture(t, 42, 1)
	m2, _ := randomnessFixture(t, 42, 1)
	s1, s2 := m1.Stream("fertility"), m2.Stream("fertility")

	require.Equal(t, s1.DrawKeyless("batch_7"), s2.DrawKeyless("batch_7"))
	require.NotEqual(t, s1.DrawKeyless("batch_7"), s1.DrawKeyless("batch_8"))
}

func TestBernoulli(t *testing.T) {
	m, _ := randomnessFixture(t, 42, 1000)
	s := m.Stream("treatment")
	require.False(t, s.Bernoulli(0, 0))

	hits := 0
	for i := 0; i < 1000; i++ {
		if s.Bernoulli(i, 0.3) {
			hits++
		}
	}
	require.InDelta(t, 300, hits, 60)
}

func TestChoice(t *testing.T) {
	m, _ := randomnessFixture(t, 42, 1000)
	s := m.Stream("wasting.initial_state")

	for i := 0; i < 100; i++ {
		require.Equal(t, 1, s.Choice(i, []float64{0, 5, 0}), "zero-weight categories never win")
	}

	counts := make([]int, 2)
	for i := 0; i < 1000; i++ {
		counts[s.Choice(i, []float64{1, 3})]++
	}
	require.InDelta(t, 250, counts[0], 70)
	require.InDelta(t, 750, counts[1], 70)

	require.Equal(t, 2, s.Choice(0, []float64{0, 0, 0}), "all-zero weights fall back to the last index")
}
