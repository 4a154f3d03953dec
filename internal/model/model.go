// Package model defines the collaborator types shared across auditor:
// per-file metadata and line comments.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Priority ranks how urgently a file needs review.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
	PriorityIgnore
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	case PriorityIgnore:
		return "Ignore"
	default:
		return "unknown"
	}
}

// ParsePriority parses a priority name, ignoring case.
func ParsePriority(s string) (Priority, error) {
	for p := PriorityHigh; p <= PriorityIgnore; p++ {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) MarshalJSON() ([]byte, error) {
	if p < PriorityHigh || p > PriorityIgnore {
		return nil, fmt.Errorf("unknown priority %d", int(p))
	}
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Metadata is reviewer-assigned information about a file.
type Metadata struct {
	Priority Priority `json:"priority"`
}

// Comment is a free-text note attached to a line of a file.
type Comment struct {
	ID     string `json:"id"`
	Body   string `json:"body"`
	Author string `json:"author"`
}

// FileComments maps a zero-based line number to the comments on it, in the
// order they were added.
type FileComments map[int][]Comment

// Count returns the total number of comments.
func (fc FileComments) Count() int {
	n := 0
	for _, cs := range fc {
		n += len(cs)
	}
	return n
}

// Clone returns a deep copy.
func (fc FileComments) Clone() FileComments {
	out := make(FileComments, len(fc))
	for line, cs := range fc {
		out[line] = append([]Comment(nil), cs...)
	}
	return out
}
