package sweep

import (
	"fmt"
	"iter"
)

// Axis is a named, ordered, non-empty list of candidate values
type Axis struct {
	Name   string
	Values []Value
}

// NewAxis builds an axis from plain Go values
func NewAxis(name string, values ...any) (Axis, error) {
	if name == "" {
		return Axis{}, fmt.Errorf("axis name cannot be empty")
	}
	if len(values) == 0 {
		return Axis{}, fmt.Errorf("axis %s: %w", name, ErrEmptyAxis)
	}
	axis := Axis{Name: name, Values: make([]Value, 0, len(values))}
	for i, raw := range values {
		v, err := NewValue(raw)
		if err != nil {
			return Axis{}, fmt.Errorf("axis %s, value %d: %w", name, i, err)
		}
		axis.Values = append(axis.Values, v)
	}
	return axis, nil
}

// MustAxis is NewAxis for literals known to be valid
func MustAxis(name string, values ...any) Axis {
	axis, err := NewAxis(name, values...)
	if err != nil {
		panic(err)
	}
	return axis
}

// Counter is a named instance index over [0, Count)
type Counter struct {
	Name  string
	Count int
}

// Combination is one value per axis followed by one index per counter
type Combination struct {
	// Index is the position of the combination in enumeration order
	Index    int
	Names    []string
	Values   []Value
	Counters []string
	Indices  []int
}

// Value returns the value of the named axis
func (c Combination) Value(name string) (Value, bool) {
	for i, n := range c.Names {
		if n == name {
			return c.Values[i], true
		}
	}
	return Value{}, false
}

// CounterIndex returns the index of the named counter
func (c Combination) CounterIndex(name string) (int, bool) {
	for i, n := range c.Counters {
		if n == name {
			return c.Indices[i], true
		}
	}
	return 0, false
}

// Fields exposes the combination to naming templates
func (c Combination) Fields() Fields {
	f := make(Fields, len(c.Names)+len(c.Counters))
	for i, n := range c.Names {
		f[n] = c.Values[i]
	}
	for i, n := range c.Counters {
		f[n] = c.Indices[i]
	}
	return f
}

// Count returns the number of combinations Product yields
func Count(axes []Axis, counters []Counter) int {
	total := 1
	for _, a := range axes {
		total *= len(a.Values)
	}
	for _, c := range counters {
		if c.Count <= 0 {
			return 0
		}
		total *= c.Count
	}
	return total
}

// Product lazily enumerates the Cartesian product of the axes, then the
// counters, with the last dimension varying fastest. An empty axis or a
// non-positive counter yields nothing; no dimensions at all yields a single
// empty combination.
func Product(axes []Axis, counters []Counter) iter.Seq[Combination] {
	return func(yield func(Combination) bool) {
		dims := make([]int, 0, len(axes)+len(counters))
		for _, a := range axes {
			dims = append(dims, len(a.Values))
		}
		for _, c := range counters {
			dims = append(dims, c.Count)
		}
		for _, d := range dims {
			if d <= 0 {
				return
			}
		}

		pos := make([]int, len(dims))
		for index := 0; ; index++ {
			if !yield(combinationAt(index, axes, counters, pos)) {
				return
			}

			i := len(pos) - 1
			for ; i >= 0; i-- {
				pos[i]++
				if pos[i] < dims[i] {
					break
				}
				pos[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

func combinationAt(index int, axes []Axis, counters []Counter, pos []int) Combination {
	c := Combination{
		Index:    index,
		Names:    make([]string, len(axes)),
		Values:   make([]Value, len(axes)),
		Counters: make([]string, len(counters)),
		Indices:  make([]int, len(counters)),
	}
	for i, a := range axes {
		c.Names[i] = a.Name
		c.Values[i] = a.Values[pos[i]]
	}
	for j, ctr := range counters {
		c.Counters[j] = ctr.Name
		c.Indices[j] = pos[len(axes)+j]
	}
	return c
}
