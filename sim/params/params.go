// Package params defines the model parameters that carry uncertainty.
//
// Each uncertain parameter is a Var: a named distribution parameterized by
// published central and interval estimates. Realizing a Var for an input
// draw is deterministic, so every simulation run with the same draw sees
// the same parameter values regardless of component setup order.
package params

import (
	"fmt"
	"hash/fnv"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Interval estimates are reported as 95% uncertainty intervals.
const (
	lowerQuantile = 0.025
	upperQuantile = 0.975
)

// Distribution realizes a scalar parameter value from an uncertainty
// distribution using the supplied random source.
type Distribution interface {
	Realize(src rand.Source) float64
}

// Normal is a normal distribution parameterized by its mean and the
// lower/upper bounds of the 95% uncertainty interval.
type Normal struct {
	Mean  float64
	Lower float64
	Upper float64
}

func (n Normal) Realize(src rand.Source) float64 {
	span := distuv.UnitNormal.Quantile(upperQuantile) - distuv.UnitNormal.Quantile(lowerQuantile)
	dist := distuv.Normal{
		Mu:    n.Mean,
		Sigma: (n.Upper - n.Lower) / span,
		Src:   src,
	}
	return dist.Rand()
}

// Lognormal is a lognormal distribution parameterized by its median and the
// lower/upper bounds of the 95% uncertainty interval. The interval bounds
// determine the shape parameter of the underlying normal.
type Lognormal struct {
	Median float64
	Lower  float64
	Upper  float64
}

func (l Lognormal) Realize(src rand.Source) float64 {
	span := distuv.UnitNormal.Quantile(upperQuantile) - distuv.UnitNormal.Quantile(lowerQuantile)
	dist := distuv.LogNormal{
		Mu:    math.Log(l.Median),
		Sigma: (math.Log(l.Upper) - math.Log(l.Lower)) / span,
		Src:   src,
	}
	return dist.Rand()
}

// Var is a named uncertain parameter. The seed keys the random source, so
// distinct parameters realized for the same draw are independent.
type Var struct {
	Seed string
	Dist Distribution
}

// Value realizes the parameter for the given input draw. Calls with the
// same draw always return the same value.
func (v Var) Value(draw int) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s_draw_%d", v.Seed, draw)
	return v.Dist.Realize(rand.NewSource(h.Sum64()))
}
