// Package review maintains per-file review state and reconciles it with
// manual updates and commit-to-commit line diffs.
//
// Every line of a file is in at most one of three categories: reviewed,
// modified (changed since it was last looked at) or ignored. Lines in none
// of them are untracked. All transitions are pure: they take a snapshot and
// return a new one, leaving the input untouched.
package review

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sprite-ai/auditor/internal/rangeset"
)

// State is the category a manual update moves lines into.
type State int

const (
	Reviewed State = iota
	Modified
	Ignored
	// Cleared removes lines from every category.
	Cleared
)

var stateNames = [...]string{"Reviewed", "Modified", "Ignored", "Cleared"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// ParseState parses a state name, ignoring case.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, name) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown review state %q", name)
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	if s < 0 || int(s) >= len(stateNames) {
		return nil, fmt.Errorf("unknown review state %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state name.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, err := ParseState(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// FileState is the review state of one file.
type FileState struct {
	Reviewed   rangeset.Set `json:"reviewed"`
	Modified   rangeset.Set `json:"modified"`
	Ignored    rangeset.Set `json:"ignored"`
	TotalLines int          `json:"total_lines"`
}

// Equal reports whether two file states cover the same lines.
func (fs FileState) Equal(o FileState) bool {
	return fs.TotalLines == o.TotalLines &&
		fs.Reviewed.Equal(o.Reviewed) &&
		fs.Modified.Equal(o.Modified) &&
		fs.Ignored.Equal(o.Ignored)
}

// StateOf returns the category of a line, and false if it is untracked.
func (fs FileState) StateOf(line int) (State, bool) {
	switch {
	case fs.Reviewed.Contains(line):
		return Reviewed, true
	case fs.Modified.Contains(line):
		return Modified, true
	case fs.Ignored.Contains(line):
		return Ignored, true
	}
	return Cleared, false
}

// MarkLines moves every line of r into st, removing it from the other
// categories. Cleared removes r from all three.
func MarkLines(fs FileState, st State, r rangeset.Range) FileState {
	switch st {
	case Reviewed:
		fs.Reviewed = rangeset.Insert(r, fs.Reviewed)
		fs.Modified = rangeset.Remove(r, fs.Modified)
		fs.Ignored = rangeset.Remove(r, fs.Ignored)
	case Modified:
		fs.Modified = rangeset.Insert(r, fs.Modified)
		fs.Reviewed = rangeset.Remove(r, fs.Reviewed)
		fs.Ignored = rangeset.Remove(r, fs.Ignored)
	case Ignored:
		fs.Ignored = rangeset.Insert(r, fs.Ignored)
		fs.Reviewed = rangeset.Remove(r, fs.Reviewed)
		fs.Modified = rangeset.Remove(r, fs.Modified)
	case Cleared:
		fs.Reviewed = rangeset.Remove(r, fs.Reviewed)
		fs.Modified = rangeset.Remove(r, fs.Modified)
		fs.Ignored = rangeset.Remove(r, fs.Ignored)
	}
	return fs
}

// Summary counts lines per category.
type Summary struct {
	Reviewed  int `json:"lines_reviewed"`
	Modified  int `json:"lines_modified"`
	Ignored   int `json:"lines_ignored"`
	Untracked int `json:"lines_untracked"`
	Total     int `json:"total_lines"`
}

// Progress summarizes a file state. Untracked is never negative, even when
// the recorded total is stale.
func Progress(fs FileState) Summary {
	s := Summary{
		Reviewed: fs.Reviewed.Lines(),
		Modified: fs.Modified.Lines(),
		Ignored:  fs.Ignored.Lines(),
		Total:    fs.TotalLines,
	}
	s.Untracked = max(0, s.Total-s.Reviewed-s.Modified-s.Ignored)
	return s
}

// Percent returns the reviewed or ignored share of the file, 0 to 100.
func (s Summary) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	done := min(s.Reviewed+s.Ignored, s.Total)
	return float64(done) * 100 / float64(s.Total)
}
