// Package rangeset implements sorted, merged lists of inclusive line ranges.
//
// A Set is kept in canonical form: ascending by start, with no two ranges
// overlapping or touching. Insert and Remove never modify their input; they
// always return a freshly allocated Set.
package rangeset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRange is returned when a range would have start > end or a
// negative bound.
var ErrInvalidRange = errors.New("invalid range")

// Range is an inclusive [start, end] interval of zero-based line numbers.
type Range struct {
	start int
	end   int
}

// NewRange returns the range [start, end].
func NewRange(start, end int) (Range, error) {
	if start < 0 || end < 0 {
		return Range{}, fmt.Errorf("%w: negative bound (%d, %d)", ErrInvalidRange, start, end)
	}
	if start > end {
		return Range{}, fmt.Errorf("%w: start %d after end %d", ErrInvalidRange, start, end)
	}
	return Range{start: start, end: end}, nil
}

// MustRange is like NewRange but panics on invalid input.
func MustRange(start, end int) Range {
	r, err := NewRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// Line returns the single-line range [n, n].
func Line(n int) Range {
	return MustRange(n, n)
}

// Start returns the first line of the range.
func (r Range) Start() int { return r.start }

// End returns the last line of the range.
func (r Range) End() int { return r.end }

// Len returns the number of lines covered.
func (r Range) Len() int { return r.end - r.start + 1 }

// Overlaps reports whether r and o share at least one line.
func (r Range) Overlaps(o Range) bool {
	return r.start <= o.end && o.start <= r.end
}

func (r Range) String() string {
	return fmt.Sprintf("(%d,%d)", r.start, r.end)
}

// MarshalJSON encodes the range as a [start, end] pair.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.start, r.end})
}

// UnmarshalJSON decodes a [start, end] pair, rejecting invalid ranges.
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	v, err := NewRange(pair[0], pair[1])
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Set is a canonical list of ranges.
type Set []Range

// Of builds a canonical Set by inserting each range in turn.
func Of(ranges ...Range) Set {
	var s Set
	for _, r := range ranges {
		s = Insert(r, s)
	}
	return s
}

// Insert returns the union of s and r, merging any ranges that overlap or
// touch r.
func Insert(r Range, s Set) Set {
	out := make(Set, 0, len(s)+1)
	start, end := r.start, r.end
	for i, cur := range s {
		if end+1 < cur.start {
			out = append(out, Range{start: start, end: end})
			return append(out, s[i:]...)
		}
		if start > cur.end+1 {
			out = append(out, cur)
			continue
		}
		start = min(start, cur.start)
		end = max(end, cur.end)
	}
	return append(out, Range{start: start, end: end})
}

// Remove returns s with every line of r removed. Ranges partially covered by
// r are split into the remainders before and after it.
func Remove(r Range, s Set) Set {
	out := make(Set, 0, len(s)+1)
	for i, cur := range s {
		if r.end < cur.start {
			return append(out, s[i:]...)
		}
		if r.start > cur.end {
			out = append(out, cur)
			continue
		}
		if cur.start < r.start {
			out = append(out, Range{start: cur.start, end: r.start - 1})
		}
		if r.end < cur.end {
			out = append(out, Range{start: r.end + 1, end: cur.end})
		}
	}
	return out
}

// Contains reports whether line is covered by the set.
func (s Set) Contains(line int) bool {
	for _, r := range s {
		if line < r.start {
			return false
		}
		if line <= r.end {
			return true
		}
	}
	return false
}

// Lines returns the total number of lines covered.
func (s Set) Lines() int {
	n := 0
	for _, r := range s {
		n += r.Len()
	}
	return n
}

// Canonical reports whether s is sorted with no overlapping or adjacent
// ranges.
func (s Set) Canonical() bool {
	for i := 1; i < len(s); i++ {
		if s[i].start <= s[i-1].end+1 {
			return false
		}
	}
	return true
}

// Clone returns a copy of s that shares no memory with it.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Equal reports whether s and o contain the same ranges. A nil set equals an
// empty one.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Set) String() string {
	parts := make([]string, len(s))
	for i, r := range s {
		parts[i] = r.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// MarshalJSON encodes the set as an array of pairs, never null.
func (s Set) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Range(s))
}

// UnmarshalJSON decodes an array of pairs and re-establishes canonical form.
func (s *Set) UnmarshalJSON(data []byte) error {
	var ranges []Range
	if err := json.Unmarshal(data, &ranges); err != nil {
		return err
	}
	*s = Of(ranges...)
	return nil
}
