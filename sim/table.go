package sim

import "fmt"

// Table is the columnar population store. Components declare the columns
// they own during setup and read or write them through typed handles.
// Rows are simulants; the table only ever grows, so a row index identifies
// the same simulant for the whole run.
type Table struct {
	n int

	floatIdx map[string]int
	floats   [][]float64
	floatDef []float64

	strIdx map[string]int
	strs   [][]string
	strDef []string

	boolIdx map[string]int
	bools   [][]bool
	boolDef []bool
}

// NewTable returns an empty population table.
func NewTable() *Table {
	return &Table{
		floatIdx: make(map[string]int),
		strIdx:   make(map[string]int),
		boolIdx:  make(map[string]int),
	}
}

// Len returns the number of simulants ever created.
func (t *Table) Len() int { return t.n }

// AddFloatColumn declares a float column. New simulants start at def.
// Panics if any column of that name already exists; two components
// claiming one column is a wiring defect.
func (t *Table) AddFloatColumn(name string, def float64) FloatCol {
	t.checkFresh(name)
	t.floatIdx[name] = len(t.floats)
	col := make([]float64, t.n)
	for i := range col {
		col[i] = def
	}
	t.floats = append(t.floats, col)
	t.floatDef = append(t.floatDef, def)
	return FloatCol{t: t, idx: t.floatIdx[name], name: name}
}

// AddStringColumn declares a string column. New simulants start at def.
func (t *Table) AddStringColumn(name string, def string) StringCol {
	t.checkFresh(name)
	t.strIdx[name] = len(t.strs)
	col := make([]string, t.n)
	for i := range col {
		col[i] = def
	}
	t.strs = append(t.strs, col)
	t.strDef = append(t.strDef, def)
	return StringCol{t: t, idx: t.strIdx[name], name: name}
}

// AddBoolColumn declares a bool column. New simulants start at def.
func (t *Table) AddBoolColumn(name string, def bool) BoolCol {
	t.checkFresh(name)
	t.boolIdx[name] = len(t.bools)
	col := make([]bool, t.n)
	for i := range col {
		col[i] = def
	}
	t.bools = append(t.bools, col)
	t.boolDef = append(t.boolDef, def)
	return BoolCol{t: t, idx: t.boolIdx[name], name: name}
}

// FloatColumn returns the handle for an existing float column.
func (t *Table) FloatColumn(name string) (FloatCol, error) {
	idx, ok := t.floatIdx[name]
	if !ok {
		return FloatCol{}, fmt.Errorf("population has no float column %q", name)
	}
	return FloatCol{t: t, idx: idx, name: name}, nil
}

// StringColumn returns the handle for an existing string column.
func (t *Table) StringColumn(name string) (StringCol, error) {
	idx, ok := t.strIdx[name]
	if !ok {
		return StringCol{}, fmt.Errorf("population has no string column %q", name)
	}
	return StringCol{t: t, idx: idx, name: name}, nil
}

// BoolColumn returns the handle for an existing bool column.
func (t *Table) BoolColumn(name string) (BoolCol, error) {
	idx, ok := t.boolIdx[name]
	if !ok {
		return BoolCol{}, fmt.Errorf("population has no bool column %q", name)
	}
	return BoolCol{t: t, idx: idx, name: name}, nil
}

// HasColumn reports whether a column of any type exists.
func (t *Table) HasColumn(name string) bool {
	if _, ok := t.floatIdx[name]; ok {
		return true
	}
	if _, ok := t.strIdx[name]; ok {
		return true
	}
	_, ok := t.boolIdx[name]
	return ok
}

// KeyValue renders the value of a column for one simulant as a stable
// string. The randomness service hashes these to key its streams.
func (t *Table) KeyValue(name string, i int) (string, error) {
	if idx, ok := t.floatIdx[name]; ok {
		return fmt.Sprintf("%g", t.floats[idx][i]), nil
	}
	if idx, ok := t.strIdx[name]; ok {
		return t.strs[idx][i], nil
	}
	if idx, ok := t.boolIdx[name]; ok {
		return fmt.Sprintf("%t", t.bools[idx][i]), nil
	}
	return "", fmt.Errorf("population has no column %q", name)
}

// Grow appends count simulants initialized to column defaults and returns
// the half-open index range of the new rows.
func (t *Table) Grow(count int) (start, end int) {
	start = t.n
	end = t.n + count
	for ci := range t.floats {
		for k := 0; k < count; k++ {
			t.floats[ci] = append(t.floats[ci], t.floatDef[ci])
		}
	}
	for ci := range t.strs {
		for k := 0; k < count; k++ {
			t.strs[ci] = append(t.strs[ci], t.strDef[ci])
		}
	}
	for ci := range t.bools {
		for k := 0; k < count; k++ {
			t.bools[ci] = append(t.bools[ci], t.boolDef[ci])
		}
	}
	t.n = end
	return start, end
}

func (t *Table) checkFresh(name string) {
	if t.HasColumn(name) {
		panic(fmt.Sprintf("sim: population column %q declared twice", name))
	}
}

// FloatCol is a handle to a float population column. Handles stay valid
// as the table grows.
type FloatCol struct {
	t    *Table
	idx  int
	name string
}

// Get returns the value for simulant i.
func (c FloatCol) Get(i int) float64 { return c.t.floats[c.idx][i] }

// Set assigns the value for simulant i.
func (c FloatCol) Set(i int, v float64) { c.t.floats[c.idx][i] = v }

// Add increments the value for simulant i.
func (c FloatCol) Add(i int, v float64) { c.t.floats[c.idx][i] += v }

// Name returns the column name.
func (c FloatCol) Name() string { return c.name }

// StringCol is a handle to a string population column.
type StringCol struct {
	t    *Table
	idx  int
	name string
}

// Get returns the value for simulant i.
func (c StringCol) Get(i int) string { return c.t.strs[c.idx][i] }

// Set assigns the value for simulant i.
func (c StringCol) Set(i int, v string) { c.t.strs[c.idx][i] = v }

// Is reports whether simulant i holds the given value.
func (c StringCol) Is(i int, v string) bool { return c.t.strs[c.idx][i] == v }

// Name returns the column name.
func (c StringCol) Name() string { return c.name }

// BoolCol is a handle to a bool population column.
type BoolCol struct {
	t    *Table
	idx  int
	name string
}

// Get returns the value for simulant i.
func (c BoolCol) Get(i int) bool { return c.t.bools[c.idx][i] }

// Set assigns the value for simulant i.
func (c BoolCol) Set(i int, v bool) { c.t.bools[c.idx][i] = v }

// Name returns the column name.
func (c BoolCol) Name() string { return c.name }
