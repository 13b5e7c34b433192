package params

import (
	"math"
	"sort"
	"testing"

	"golang.org/x/exp/rand"
)

func TestNormal_MeanMatchesEstimate(t *testing.T) {
	src := rand.NewSource(42)
	d := Normal{Mean: 0.5, Lower: 0.3, Upper: 0.7}
	n := 10000
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += d.Realize(src)
	}
	mean := sum / float64(n)
	if math.Abs(mean-0.5)/0.5 > 0.05 {
		t.Errorf("normal mean = %.4f, want ≈ 0.5 (within 5%%)", mean)
	}
}

func TestNormal_IntervalCoversRealizations(t *testing.T) {
	src := rand.NewSource(42)
	d := Normal{Mean: 0.5, Lower: 0.3, Upper: 0.7}
	n := 10000
	inside := 0
	for i := 0; i < n; i++ {
		if v := d.Realize(src); 0.3 <= v && v <= 0.7 {
			inside++
		}
	}
	frac := float64(inside) / float64(n)
	if frac < 0.93 || frac > 0.97 {
		t.Errorf("fraction inside 95%% interval = %.3f, want ≈ 0.95", frac)
	}
}

func TestLognormal_MedianMatchesEstimate(t *testing.T) {
	src := rand.NewSource(42)
	d := Lognormal{Median: 0.85, Lower: 0.74, Upper: 0.98}
	n := 10001
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = d.Realize(src)
	}
	sort.Float64s(vals)
	median := vals[n/2]
	if math.Abs(median-0.85)/0.85 > 0.05 {
		t.Errorf("lognormal median = %.4f, want ≈ 0.85 (within 5%%)", median)
	}
}

func TestLognormal_AlwaysPositive(t *testing.T) {
	src := rand.NewSource(42)
	d := Lognormal{Median: 6.7, Lower: 5.3, Upper: 8.4}
	for i := 0; i < 10000; i++ {
		if v := d.Realize(src); v <= 0 {
			t.Fatalf("realization %d: got %v, want > 0", i, v)
		}
	}
}

func TestVar_DeterministicAcrossCalls(t *testing.T) {
	for draw := 0; draw < 10; draw++ {
		a := BaselineTxCoverage.Value(draw)
		b := BaselineTxCoverage.Value(draw)
		if a != b {
			t.Errorf("draw %d: realizations differ: %v vs %v", draw, a, b)
		}
	}
}

func TestVar_VariesAcrossDraws(t *testing.T) {
	seen := map[float64]bool{}
	for draw := 0; draw < 10; draw++ {
		seen[SAMK.Value(draw)] = true
	}
	if len(seen) < 2 {
		t.Errorf("got %d distinct realizations across 10 draws, want several", len(seen))
	}
}

func TestVar_IndependentAcrossSeeds(t *testing.T) {
	a := SQLNSSevereWastingRR.Value(0)
	b := SQLNSModerateWastingRR.Value(0)
	if a == b {
		t.Errorf("distinct parameters realized identically for draw 0: %v", a)
	}
}
