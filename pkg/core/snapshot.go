package core

import (
	"sort"
	"time"
)

// Snapshot holds every indicator value defined at one bar.
// A name missing from Values means the indicator is undefined at that bar.
type Snapshot struct {
	Symbol   string
	Time     time.Time
	Bar      Bar
	Previous Bar

	Values     map[string]float64
	PrevValues map[string]float64
}

// Value returns the indicator value at the snapshot bar
func (s Snapshot) Value(name string) (float64, bool) {
	v, ok := s.Values[name]
	return v, ok
}

// Prev returns the indicator value at the bar before the snapshot bar
func (s Snapshot) Prev(name string) (float64, bool) {
	v, ok := s.PrevValues[name]
	return v, ok
}

// Has reports whether all names are defined at the snapshot bar
func (s Snapshot) Has(names ...string) bool {
	for _, name := range names {
		if _, ok := s.Values[name]; !ok {
			return false
		}
	}
	return true
}

// Rising reports whether the named indicator increased since the previous bar
func (s Snapshot) Rising(name string) bool {
	cur, ok := s.Value(name)
	prev, okPrev := s.Prev(name)
	return ok && okPrev && cur > prev
}

// CrossedAbove reports whether indicator a crossed above b on the snapshot bar
func (s Snapshot) CrossedAbove(a, b string) bool {
	curA, ok1 := s.Value(a)
	curB, ok2 := s.Value(b)
	prevA, ok3 := s.Prev(a)
	prevB, ok4 := s.Prev(b)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}
	return Series[float64]{prevA, curA}.Crossover(Series[float64]{prevB, curB})
}

// Names returns the defined indicator names in sorted order
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Values))
	for name := range s.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
