package artifact

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Lookup resolves a scalar artifact table at a demographic stratum.
// Order 0 returns the containing bin's value; order 1 interpolates
// linearly between age-bin midpoints within the matching year span.
// When extrapolation is enabled, strata outside the table clamp to the
// nearest bin; otherwise At panics, since a gap in required input data
// cannot produce a meaningful simulation.
type Lookup struct {
	key         string
	order       int
	extrapolate bool
	bins        []bin
}

type bin struct {
	sex       string
	ageStart  float64
	ageEnd    float64
	yearStart float64
	yearEnd   float64
	value     float64
}

// NewLookup builds a lookup from a table's rows. Rows carrying category
// parameters are rejected; use NewCategoryLookup for those tables.
func NewLookup(key string, rows []Row, order int, extrapolate bool) (*Lookup, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("artifact table %s is empty", key)
	}
	l := &Lookup{key: key, order: order, extrapolate: extrapolate}
	for _, r := range rows {
		if r.Parameter != "" {
			return nil, fmt.Errorf("artifact table %s is categorical (parameter %q); use a category lookup", key, r.Parameter)
		}
		l.bins = append(l.bins, bin{
			sex:       r.Sex,
			ageStart:  r.AgeStart,
			ageEnd:    r.AgeEnd,
			yearStart: float64(r.YearStart),
			yearEnd:   float64(r.YearEnd),
			value:     r.Value,
		})
	}
	sort.SliceStable(l.bins, func(i, j int) bool {
		if l.bins[i].sex != l.bins[j].sex {
			return l.bins[i].sex < l.bins[j].sex
		}
		if l.bins[i].yearStart != l.bins[j].yearStart {
			return l.bins[i].yearStart < l.bins[j].yearStart
		}
		return l.bins[i].ageStart < l.bins[j].ageStart
	})
	return l, nil
}

// Key returns the artifact key the lookup serves.
func (l *Lookup) Key() string { return l.key }

// At resolves the value for a simulant of the given sex, age (years), and
// point-in-time year (fractional years allowed).
func (l *Lookup) At(sex string, age, year float64) float64 {
	cands := l.candidates(sex, year)
	if len(cands) == 0 {
		panic(fmt.Sprintf("artifact table %s has no rows for sex %q", l.key, sex))
	}
	if l.order >= 1 {
		return l.interpolateAge(cands, age)
	}
	best := -1
	bestDist := math.Inf(1)
	for _, ci := range cands {
		b := l.bins[ci]
		if age >= b.ageStart && age < b.ageEnd {
			return b.value
		}
		d := spanDistance(age, b.ageStart, b.ageEnd)
		if d < bestDist {
			bestDist = d
			best = ci
		}
	}
	if !l.extrapolate {
		panic(fmt.Sprintf("artifact table %s has no bin for sex=%s age=%g year=%g and extrapolation is off", l.key, sex, age, year))
	}
	return l.bins[best].value
}

// candidates returns indices of bins matching sex within the year span
// containing year, clamping to the nearest year span when permitted.
func (l *Lookup) candidates(sex string, year float64) []int {
	var inYear []int
	var bySex []int
	for i, b := range l.bins {
		if b.sex != sex && b.sex != "Both" {
			continue
		}
		bySex = append(bySex, i)
		if year >= b.yearStart && year < b.yearEnd {
			inYear = append(inYear, i)
		}
	}
	if len(inYear) > 0 {
		return inYear
	}
	if len(bySex) == 0 {
		return nil
	}
	if !l.extrapolate {
		panic(fmt.Sprintf("artifact table %s has no year span for %g and extrapolation is off", l.key, year))
	}
	// Clamp to the nearest year span.
	bestDist := math.Inf(1)
	var bestStart float64
	for _, i := range bySex {
		b := l.bins[i]
		if d := spanDistance(year, b.yearStart, b.yearEnd); d < bestDist {
			bestDist = d
			bestStart = b.yearStart
		}
	}
	var out []int
	for _, i := range bySex {
		if l.bins[i].yearStart == bestStart {
			out = append(out, i)
		}
	}
	return out
}

// interpolateAge linearly interpolates between age-bin midpoints; ages
// beyond the outermost midpoints clamp to the edge values.
func (l *Lookup) interpolateAge(cands []int, age float64) float64 {
	ordered := append([]int(nil), cands...)
	sort.Slice(ordered, func(i, j int) bool {
		return l.bins[ordered[i]].ageStart < l.bins[ordered[j]].ageStart
	})
	mid := func(b bin) float64 { return (b.ageStart + b.ageEnd) / 2 }
	first := l.bins[ordered[0]]
	last := l.bins[ordered[len(ordered)-1]]
	if age <= mid(first) || len(ordered) == 1 {
		return first.value
	}
	if age >= mid(last) {
		return last.value
	}
	for k := 0; k+1 < len(ordered); k++ {
		lo, hi := l.bins[ordered[k]], l.bins[ordered[k+1]]
		m0, m1 := mid(lo), mid(hi)
		if age >= m0 && age < m1 {
			t := (age - m0) / (m1 - m0)
			return lo.value + t*(hi.value-lo.value)
		}
	}
	return last.value
}

func spanDistance(v, start, end float64) float64 {
	if v < start {
		return start - v
	}
	if v >= end {
		return v - end
	}
	return 0
}

// CategoryLookup resolves a categorical artifact table: one value per
// category at each stratum, e.g. risk-exposure distributions or per
// category relative risks.
type CategoryLookup struct {
	key        string
	categories []string
	lookups    map[string]*Lookup
}

// NewCategoryLookup builds a per-category lookup from a table whose rows
// carry category parameters.
func NewCategoryLookup(key string, rows []Row, order int, extrapolate bool) (*CategoryLookup, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("artifact table %s is empty", key)
	}
	byParam := make(map[string][]Row)
	for _, r := range rows {
		if r.Parameter == "" {
			return nil, fmt.Errorf("artifact table %s mixes scalar and categorical rows", key)
		}
		param := r.Parameter
		r.Parameter = ""
		byParam[param] = append(byParam[param], r)
	}
	cl := &CategoryLookup{key: key, lookups: make(map[string]*Lookup, len(byParam))}
	for param, group := range byParam {
		l, err := NewLookup(key+"/"+param, group, order, extrapolate)
		if err != nil {
			return nil, err
		}
		cl.lookups[param] = l
		cl.categories = append(cl.categories, param)
	}
	sortCategories(cl.categories)
	return cl, nil
}

// Key returns the artifact key the lookup serves.
func (c *CategoryLookup) Key() string { return c.key }

// Categories returns the category order used by At.
func (c *CategoryLookup) Categories() []string { return c.categories }

// At fills out with each category's value at the stratum, in Categories
// order, growing the buffer as needed.
func (c *CategoryLookup) At(sex string, age, year float64, out []float64) []float64 {
	if cap(out) < len(c.categories) {
		out = make([]float64, len(c.categories))
	}
	out = out[:len(c.categories)]
	for i, cat := range c.categories {
		out[i] = c.lookups[cat].At(sex, age, year)
	}
	return out
}

// Value resolves a single category at the stratum.
func (c *CategoryLookup) Value(category, sex string, age, year float64) (float64, error) {
	l, ok := c.lookups[category]
	if !ok {
		return 0, fmt.Errorf("artifact table %s has no category %q", c.key, category)
	}
	return l.At(sex, age, year), nil
}

// sortCategories orders GBD-style category names (cat1, cat2, ...)
// numerically and anything else lexicographically.
func sortCategories(cats []string) {
	numeric := true
	for _, c := range cats {
		if _, err := strconv.Atoi(strings.TrimPrefix(c, "cat")); err != nil || !strings.HasPrefix(c, "cat") {
			numeric = false
			break
		}
	}
	if numeric {
		sort.Slice(cats, func(i, j int) bool {
			a, _ := strconv.Atoi(strings.TrimPrefix(cats[i], "cat"))
			b, _ := strconv.Atoi(strings.TrimPrefix(cats[j], "cat"))
			return a < b
		})
		return
	}
	sort.Strings(cats)
}
