package artifact

import (
	"context"
	"fmt"
)

// View is the read surface a simulation run sees: a store pinned to one
// input draw with the run's interpolation settings, caching lookups by
// key.
type View struct {
	store       *Store
	draw        int
	order       int
	extrapolate bool

	lookups    map[string]*Lookup
	catLookups map[string]*CategoryLookup
}

// NewView wraps a store for one run.
func NewView(store *Store, draw, order int, extrapolate bool) *View {
	return &View{
		store:       store,
		draw:        draw,
		order:       order,
		extrapolate: extrapolate,
		lookups:     make(map[string]*Lookup),
		catLookups:  make(map[string]*CategoryLookup),
	}
}

// Draw returns the input draw the view is pinned to.
func (v *View) Draw() int { return v.draw }

// Lookup returns the scalar lookup for key, building and caching it on
// first use.
func (v *View) Lookup(ctx context.Context, key string) (*Lookup, error) {
	if l, ok := v.lookups[key]; ok {
		return l, nil
	}
	rows, err := v.store.LoadRows(ctx, key, v.draw)
	if err != nil {
		return nil, err
	}
	l, err := NewLookup(key, rows, v.order, v.extrapolate)
	if err != nil {
		return nil, err
	}
	v.lookups[key] = l
	return l, nil
}

// CategoryLookup returns the categorical lookup for key, building and
// caching it on first use.
func (v *View) CategoryLookup(ctx context.Context, key string) (*CategoryLookup, error) {
	if l, ok := v.catLookups[key]; ok {
		return l, nil
	}
	rows, err := v.store.LoadRows(ctx, key, v.draw)
	if err != nil {
		return nil, err
	}
	l, err := NewCategoryLookup(key, rows, v.order, v.extrapolate)
	if err != nil {
		return nil, err
	}
	v.catLookups[key] = l
	return l, nil
}

// Rows returns the raw rows of a table at the view's draw, for callers
// that aggregate over whole tables rather than evaluating point lookups.
func (v *View) Rows(ctx context.Context, key string) ([]Row, error) {
	return v.store.LoadRows(ctx, key, v.draw)
}

// Scalar returns the single value of a one-row table.
func (v *View) Scalar(ctx context.Context, key string) (float64, error) {
	rows, err := v.store.LoadRows(ctx, key, v.draw)
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("artifact table %s has %d rows, want a single scalar", key, len(rows))
	}
	return rows[0].Value, nil
}

// Meta decodes an artifact metadata value.
func (v *View) Meta(ctx context.Context, key string, out interface{}) error {
	return v.store.LoadMeta(ctx, key, out)
}

// AgeBin is one age group of the population's binning metadata.
type AgeBin struct {
	Name  string  `json:"name"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// AgeBinsKey is the metadata key holding the population age grouping.
const AgeBinsKey = "population.age_bins"

// AgeBins loads the population age grouping, when the artifact carries
// one.
func (v *View) AgeBins(ctx context.Context) ([]AgeBin, error) {
	var bins []AgeBin
	if err := v.store.LoadMeta(ctx, AgeBinsKey, &bins); err != nil {
		return nil, err
	}
	return bins, nil
}
