package review

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/sprite-ai/auditor/internal/rangeset"
)

var (
	ErrInvalidUpdate   = errors.New("invalid review update")
	ErrInvalidLineDiff = errors.New("invalid line diff")
)

// CommitState is the review state of every tracked file as of one commit.
// A CommitState is treated as immutable once built; transitions return a new
// one that shares the untouched files.
type CommitState struct {
	Files      map[string]FileState `json:"files"`
	Exclusions []string             `json:"exclusions"`
}

// NewCommitState returns an empty snapshot with the given excluded prefixes.
func NewCommitState(exclusions []string) CommitState {
	return CommitState{
		Files:      map[string]FileState{},
		Exclusions: slices.Clone(exclusions),
	}
}

// File returns the state of name, or an empty state if it is not tracked.
func (c CommitState) File(name string) FileState {
	return c.Files[name]
}

// FileNames returns the tracked file names in sorted order.
func (c CommitState) FileNames() []string {
	return slices.Sorted(maps.Keys(c.Files))
}

func (c CommitState) clone() CommitState {
	files := make(map[string]FileState, len(c.Files)+1)
	maps.Copy(files, c.Files)
	return CommitState{Files: files, Exclusions: c.Exclusions}
}

// Update is a manual request to move a range of one file into a state.
type Update struct {
	File       string
	Range      rangeset.Range
	State      State
	TotalLines int
}

// Validate checks the update against its own line count.
func (u Update) Validate() error {
	if u.File == "" {
		return fmt.Errorf("%w: missing file name", ErrInvalidUpdate)
	}
	if u.State < Reviewed || u.State > Cleared {
		return fmt.Errorf("%w: unknown state %d", ErrInvalidUpdate, int(u.State))
	}
	if u.TotalLines < 0 {
		return fmt.Errorf("%w: negative total lines", ErrInvalidUpdate)
	}
	if u.TotalLines > 0 && u.Range.End() >= u.TotalLines {
		return fmt.Errorf("%w: line %d beyond end of %s (%d lines)",
			ErrInvalidUpdate, u.Range.End(), u.File, u.TotalLines)
	}
	return nil
}

// UpdateReviews applies a manual update to one file of cur and records the
// caller-supplied line count. Other files are carried over unchanged.
func UpdateReviews(cur CommitState, u Update) CommitState {
	next := cur.clone()
	fs := MarkLines(next.Files[u.File], u.State, u.Range)
	fs.TotalLines = u.TotalLines
	next.Files[u.File] = fs
	return next
}

// LineDiff is one changed line location of a diff. Line numbers are
// 1-based; 0 means the side is absent. A pure insertion has only New, a
// pure deletion only Old.
type LineDiff struct {
	Old int `json:"old,omitempty"`
	New int `json:"new,omitempty"`
}

// NewLineDiff validates and returns a line diff.
func NewLineDiff(oldLine, newLine int) (LineDiff, error) {
	if oldLine < 0 || newLine < 0 {
		return LineDiff{}, fmt.Errorf("%w: negative line (%d, %d)", ErrInvalidLineDiff, oldLine, newLine)
	}
	if oldLine == 0 && newLine == 0 {
		return LineDiff{}, fmt.Errorf("%w: neither old nor new line", ErrInvalidLineDiff)
	}
	return LineDiff{Old: oldLine, New: newLine}, nil
}

// Insertion reports whether the entry adds or replaces a line in the new
// revision.
func (d LineDiff) Insertion() bool { return d.New > 0 }

// Deletion reports whether the entry only removes a line.
func (d LineDiff) Deletion() bool { return d.Old > 0 && d.New == 0 }

// Diff holds the changed lines of every file between two commits.
type Diff struct {
	Files map[string][]LineDiff `json:"files"`
}

// Lines returns the total number of entries across all files.
func (d *Diff) Lines() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, lines := range d.Files {
		n += len(lines)
	}
	return n
}

// TransformReviews reinterprets a diff as review invalidation: every line
// the diff reports in the new revision becomes Modified. A nil diff returns
// cur unchanged.
//
// Pure deletions are not applied. A deleted line has no position in the new
// revision to anchor an update, so neighbouring ranges keep their state.
func TransformReviews(cur CommitState, d *Diff) CommitState {
	if d == nil {
		return cur
	}
	next := cur.clone()
	for name, lines := range d.Files {
		if len(lines) == 0 {
			continue
		}
		fs := next.Files[name]
		for _, ld := range lines {
			if ld.Insertion() {
				fs = MarkLines(fs, Modified, rangeset.Line(ld.New-1))
			}
		}
		next.Files[name] = fs
	}
	return next
}
