package amount

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Interval is an inclusive span [Min, Max] of amounts.
type Interval struct {
	Min, Max Amount
}

// Range is a set of acceptable amounts, kept as disjoint,
// non-adjacent intervals in ascending order. The zero Range is
// empty. Ranges are values; no method modifies its receiver.
type Range struct {
	spans []Interval
}

// Between returns the range [min, max], or the empty range if
// min > max.
func Between(min, max Amount) Range {
	if min > max {
		return Range{}
	}
	return Range{spans: []Interval{{min, max}}}
}

// Exactly returns the range containing only a.
func Exactly(a Amount) Range {
	return Between(a, a)
}

func normalize(spans []Interval) Range {
	if len(spans) == 0 {
		return Range{}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Min < spans[j].Min })
	out := []Interval{spans[0]}
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if last.Max == math.MaxInt64 || s.Min <= last.Max+1 {
			if s.Max > last.Max {
				last.Max = s.Max
			}
			continue
		}
		out = append(out, s)
	}
	return Range{spans: out}
}

// Union returns the amounts in either r or o.
func (r Range) Union(o Range) Range {
	spans := make([]Interval, 0, len(r.spans)+len(o.spans))
	spans = append(spans, r.spans...)
	spans = append(spans, o.spans...)
	return normalize(spans)
}

// Intersect returns the amounts in both r and o.
func (r Range) Intersect(o Range) Range {
	var spans []Interval
	for _, a := range r.spans {
		for _, b := range o.spans {
			lo, hi := a.Min, a.Max
			if b.Min > lo {
				lo = b.Min
			}
			if b.Max < hi {
				hi = b.Max
			}
			if lo <= hi {
				spans = append(spans, Interval{lo, hi})
			}
		}
	}
	return normalize(spans)
}

// Add returns every sum x+y with x in r and y in o.
// The sum with an empty range is empty. Spans whose upper end
// overflows are clipped at math.MaxInt64; spans that overflow
// entirely are dropped.
func (r Range) Add(o Range) Range {
	var spans []Interval
	for _, a := range r.spans {
		for _, b := range o.spans {
			lo, ok := Add(a.Min, b.Min)
			if !ok {
				continue
			}
			hi, ok := Add(a.Max, b.Max)
			if !ok {
				hi = math.MaxInt64
			}
			spans = append(spans, Interval{lo, hi})
		}
	}
	return normalize(spans)
}

// Contains reports whether a is in r.
func (r Range) Contains(a Amount) bool {
	i := sort.Search(len(r.spans), func(i int) bool { return r.spans[i].Max >= a })
	return i < len(r.spans) && r.spans[i].Min <= a
}

// IsEmpty reports whether r contains no amounts.
func (r Range) IsEmpty() bool {
	return len(r.spans) == 0
}

// Min returns the smallest amount in r, or 0 if r is empty.
func (r Range) Min() Amount {
	if r.IsEmpty() {
		return 0
	}
	return r.spans[0].Min
}

// Max returns the largest amount in r, or 0 if r is empty.
func (r Range) Max() Amount {
	if r.IsEmpty() {
		return 0
	}
	return r.spans[len(r.spans)-1].Max
}

// Intervals returns a copy of the disjoint intervals making up r.
func (r Range) Intervals() []Interval {
	return append([]Interval(nil), r.spans...)
}

// Equal reports whether r and o contain the same amounts.
func (r Range) Equal(o Range) bool {
	if len(r.spans) != len(o.spans) {
		return false
	}
	for i := range r.spans {
		if r.spans[i] != o.spans[i] {
			return false
		}
	}
	return true
}

func (r Range) String() string {
	if r.IsEmpty() {
		return "[]"
	}
	parts := make([]string, len(r.spans))
	for i, s := range r.spans {
		parts[i] = fmt.Sprintf("[%d, %d]", s.Min, s.Max)
	}
	return strings.Join(parts, " ∪ ")
}

// MarshalJSON encodes r as a list of [min, max] pairs in satoshis.
func (r Range) MarshalJSON() ([]byte, error) {
	pairs := make([][2]int64, len(r.spans))
	for i, s := range r.spans {
		pairs[i] = [2]int64{int64(s.Min), int64(s.Max)}
	}
	return json.Marshal(pairs)
}
