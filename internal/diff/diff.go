// Package diff parses unified git diffs and turns them into the per-line
// change lists the review engine consumes.
package diff

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/sprite-ai/auditor/internal/review"
)

// File represents a single file in a diff with its parsed fragments.
type File struct {
	OldName      string
	NewName      string
	IsNew        bool
	IsDeleted    bool
	IsRenamed    bool
	IsBinary     bool
	Fragments    []*gitdiff.TextFragment
	AddedLines   int
	DeletedLines int
}

// Path returns the name the file has after the change, or its old name when
// the change deletes it.
func (f *File) Path() string {
	if f.IsDeleted || f.NewName == "" {
		return f.OldName
	}
	return f.NewName
}

// LineDiffs returns the changed line locations of the file. Context lines
// are never included.
func (f *File) LineDiffs() []review.LineDiff {
	var out []review.LineDiff
	for _, frag := range f.Fragments {
		oldLine := int(frag.OldPosition)
		newLine := int(frag.NewPosition)
		for _, line := range frag.Lines {
			switch line.Op {
			case gitdiff.OpAdd:
				out = append(out, review.LineDiff{New: newLine})
				newLine++
			case gitdiff.OpDelete:
				out = append(out, review.LineDiff{Old: oldLine})
				oldLine++
			default:
				oldLine++
				newLine++
			}
		}
	}
	return out
}

// DiffSet holds the parsed diff for all files.
type DiffSet struct {
	Files []*File
	Raw   string // the raw unified diff text
}

// Stats returns aggregate statistics.
func (ds *DiffSet) Stats() (files, added, deleted int) {
	files = len(ds.Files)
	for _, f := range ds.Files {
		added += f.AddedLines
		deleted += f.DeletedLines
	}
	return
}

// LineDiffs converts the set into a review diff. Files for which excluded
// returns true are dropped; excluded may be nil. Binary files and files
// without changed lines are omitted.
func (ds *DiffSet) LineDiffs(excluded func(path string) bool) *review.Diff {
	d := &review.Diff{Files: make(map[string][]review.LineDiff)}
	for _, f := range ds.Files {
		if f.IsBinary {
			continue
		}
		path := f.Path()
		if excluded != nil && excluded(path) {
			continue
		}
		if lines := f.LineDiffs(); len(lines) > 0 {
			d.Files[path] = append(d.Files[path], lines...)
		}
	}
	return d
}

// Parse reads a unified diff string and returns a DiffSet.
func Parse(raw string) (*DiffSet, error) {
	parsed, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	ds := &DiffSet{Raw: raw}
	for _, f := range parsed {
		df := &File{
			OldName:   f.OldName,
			NewName:   f.NewName,
			IsNew:     f.IsNew,
			IsDeleted: f.IsDelete,
			IsRenamed: f.IsRename,
			IsBinary:  f.IsBinary,
		}

		for _, frag := range f.TextFragments {
			df.Fragments = append(df.Fragments, frag)
			for _, line := range frag.Lines {
				switch line.Op {
				case gitdiff.OpAdd:
					df.AddedLines++
				case gitdiff.OpDelete:
					df.DeletedLines++
				}
			}
		}

		ds.Files = append(ds.Files, df)
	}

	return ds, nil
}
