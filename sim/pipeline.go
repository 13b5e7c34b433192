package sim

import (
	"fmt"
	"math"
	"sort"
)

// The values system. Components publish per-simulant quantities through
// named pipelines: one component supplies the source, any number of
// later components layer modifiers on top. Rate pipelines carry annual
// rates; callers convert to per-step probabilities at the point of use.

// RateToProbability converts an annual rate to the probability of at
// least one event over dtDays.
func RateToProbability(annual, dtDays float64) float64 {
	return 1 - math.Exp(-annual*dtDays/DaysPerYear)
}

// ProbabilityToRate converts a per-dtDays probability back to an annual
// rate.
func ProbabilityToRate(p, dtDays float64) float64 {
	return -math.Log(1-p) * DaysPerYear / dtDays
}

// Pipeline is a per-simulant scalar value.
type Pipeline struct {
	name   string
	source func(i int) float64
	mods   []func(i int, v float64) float64
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// SetSource installs the producing function. Panics when two components
// claim the same pipeline.
func (p *Pipeline) SetSource(fn func(i int) float64) {
	if p.source != nil {
		panic(fmt.Sprintf("sim: pipeline %q has two sources", p.name))
	}
	p.source = fn
}

// Sourced reports whether a source is installed. Accumulator pipelines
// use it so that whichever contributing component sets up first can
// supply the zero baseline.
func (p *Pipeline) Sourced() bool { return p.source != nil }

// AddModifier appends a transformation applied after the source, in
// registration order.
func (p *Pipeline) AddModifier(fn func(i int, v float64) float64) {
	p.mods = append(p.mods, fn)
}

// Value computes the pipeline for simulant i.
func (p *Pipeline) Value(i int) float64 {
	v := p.source(i)
	for _, m := range p.mods {
		v = m(i, v)
	}
	return v
}

// CategoryPipeline is a per-simulant categorical value.
type CategoryPipeline struct {
	name   string
	source func(i int) string
	mods   []func(i int, v string) string
}

// Name returns the pipeline name.
func (p *CategoryPipeline) Name() string { return p.name }

// SetSource installs the producing function.
func (p *CategoryPipeline) SetSource(fn func(i int) string) {
	if p.source != nil {
		panic(fmt.Sprintf("sim: pipeline %q has two sources", p.name))
	}
	p.source = fn
}

// AddModifier appends a transformation applied after the source.
func (p *CategoryPipeline) AddModifier(fn func(i int, v string) string) {
	p.mods = append(p.mods, fn)
}

// Value computes the category for simulant i.
func (p *CategoryPipeline) Value(i int) string {
	v := p.source(i)
	for _, m := range p.mods {
		v = m(i, v)
	}
	return v
}

// VectorPipeline is a per-simulant vector keyed by a fixed category list,
// used for exposure-parameter distributions and per-cause hazards.
type VectorPipeline struct {
	name       string
	categories []string
	source     func(i int, out []float64)
	mods       []func(i int, vals []float64)
}

// Name returns the pipeline name.
func (p *VectorPipeline) Name() string { return p.name }

// SetCategories fixes the category list. The source and all modifiers
// write values in this order. Panics if set twice with different lists.
func (p *VectorPipeline) SetCategories(cats []string) {
	if p.categories != nil {
		if len(p.categories) != len(cats) {
			panic(fmt.Sprintf("sim: pipeline %q categories redefined", p.name))
		}
		for i := range cats {
			if p.categories[i] != cats[i] {
				panic(fmt.Sprintf("sim: pipeline %q categories redefined", p.name))
			}
		}
		return
	}
	p.categories = append([]string(nil), cats...)
}

// AddCategory appends a category if absent and returns its index. Hazard
// vectors grow this way as later components claim their slots; the source
// must size its output from the final category list.
func (p *VectorPipeline) AddCategory(cat string) int {
	if i := p.Index(cat); i >= 0 {
		return i
	}
	p.categories = append(p.categories, cat)
	return len(p.categories) - 1
}

// Categories returns the category list.
func (p *VectorPipeline) Categories() []string { return p.categories }

// Index returns the position of a category, or -1.
func (p *VectorPipeline) Index(cat string) int {
	for i, c := range p.categories {
		if c == cat {
			return i
		}
	}
	return -1
}

// SetSource installs the producing function.
func (p *VectorPipeline) SetSource(fn func(i int, out []float64)) {
	if p.source != nil {
		panic(fmt.Sprintf("sim: pipeline %q has two sources", p.name))
	}
	p.source = fn
}

// AddModifier appends an in-place transformation applied after the source.
func (p *VectorPipeline) AddModifier(fn func(i int, vals []float64)) {
	p.mods = append(p.mods, fn)
}

// Values computes the vector for simulant i into buf, growing it as
// needed, and returns it.
func (p *VectorPipeline) Values(i int, buf []float64) []float64 {
	if cap(buf) < len(p.categories) {
		buf = make([]float64, len(p.categories))
	}
	buf = buf[:len(p.categories)]
	p.source(i, buf)
	for _, m := range p.mods {
		m(i, buf)
	}
	return buf
}

// FlagPipeline is a per-simulant boolean value.
type FlagPipeline struct {
	name   string
	source func(i int) bool
	mods   []func(i int, v bool) bool
}

// Name returns the pipeline name.
func (p *FlagPipeline) Name() string { return p.name }

// SetSource installs the producing function.
func (p *FlagPipeline) SetSource(fn func(i int) bool) {
	if p.source != nil {
		panic(fmt.Sprintf("sim: pipeline %q has two sources", p.name))
	}
	p.source = fn
}

// AddModifier appends a transformation applied after the source.
func (p *FlagPipeline) AddModifier(fn func(i int, v bool) bool) {
	p.mods = append(p.mods, fn)
}

// Value computes the flag for simulant i.
func (p *FlagPipeline) Value(i int) bool {
	v := p.source(i)
	for _, m := range p.mods {
		v = m(i, v)
	}
	return v
}

// Values is the pipeline registry. Pipelines are created on first touch
// so modifiers may register before the producing component sets up.
type Values struct {
	scalars    map[string]*Pipeline
	categories map[string]*CategoryPipeline
	vectors    map[string]*VectorPipeline
	flags      map[string]*FlagPipeline
}

// NewValues returns an empty pipeline registry.
func NewValues() *Values {
	return &Values{
		scalars:    make(map[string]*Pipeline),
		categories: make(map[string]*CategoryPipeline),
		vectors:    make(map[string]*VectorPipeline),
		flags:      make(map[string]*FlagPipeline),
	}
}

// Pipeline returns the named scalar pipeline, creating it if needed.
func (v *Values) Pipeline(name string) *Pipeline {
	p, ok := v.scalars[name]
	if !ok {
		p = &Pipeline{name: name}
		v.scalars[name] = p
	}
	return p
}

// Category returns the named categorical pipeline, creating it if needed.
func (v *Values) Category(name string) *CategoryPipeline {
	p, ok := v.categories[name]
	if !ok {
		p = &CategoryPipeline{name: name}
		v.categories[name] = p
	}
	return p
}

// Vector returns the named vector pipeline, creating it if needed.
func (v *Values) Vector(name string) *VectorPipeline {
	p, ok := v.vectors[name]
	if !ok {
		p = &VectorPipeline{name: name}
		v.vectors[name] = p
	}
	return p
}

// Flag returns the named flag pipeline, creating it if needed.
func (v *Values) Flag(name string) *FlagPipeline {
	p, ok := v.flags[name]
	if !ok {
		p = &FlagPipeline{name: name}
		v.flags[name] = p
	}
	return p
}

// CheckSources verifies every touched pipeline gained a source during
// setup. A modifier on a sourceless pipeline means the component that
// should produce it was never declared in the manifest.
func (v *Values) CheckSources() error {
	var missing []string
	for name, p := range v.scalars {
		if p.source == nil {
			missing = append(missing, name)
		}
	}
	for name, p := range v.categories {
		if p.source == nil {
			missing = append(missing, name)
		}
	}
	for name, p := range v.vectors {
		if p.source == nil {
			missing = append(missing, name)
		}
	}
	for name, p := range v.flags {
		if p.source == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("pipelines with modifiers but no source: %v", missing)
}
