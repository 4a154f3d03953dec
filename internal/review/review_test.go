package review

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/auditor/internal/rangeset"
)

func rs(pairs ...[2]int) rangeset.Set {
	var s rangeset.Set
	for _, p := range pairs {
		s = rangeset.Insert(rangeset.MustRange(p[0], p[1]), s)
	}
	return s
}

func assertSets(t *testing.T, fs FileState, reviewed, modified, ignored rangeset.Set) {
	t.Helper()
	assert.Equal(t, reviewed.String(), fs.Reviewed.String(), "reviewed")
	assert.Equal(t, modified.String(), fs.Modified.String(), "modified")
	assert.Equal(t, ignored.String(), fs.Ignored.String(), "ignored")
}

func TestMarkLinesScenario(t *testing.T) {
	fs := FileState{
		Reviewed: rs([2]int{0, 0}),
		Modified: rs([2]int{1, 1}),
		Ignored:  rs([2]int{2, 2}),
	}

	fs = MarkLines(fs, Reviewed, rangeset.MustRange(3, 5))
	assertSets(t, fs, rs([2]int{0, 0}, [2]int{3, 5}), rs([2]int{1, 1}), rs([2]int{2, 2}))

	fs = MarkLines(fs, Modified, rangeset.MustRange(2, 4))
	assertSets(t, fs, rs([2]int{0, 0}, [2]int{5, 5}), rs([2]int{1, 4}), nil)
}

func TestMarkLinesCleared(t *testing.T) {
	fs := FileState{
		Reviewed: rs([2]int{0, 3}),
		Modified: rs([2]int{4, 6}),
		Ignored:  rs([2]int{7, 9}),
	}
	fs = MarkLines(fs, Cleared, rangeset.MustRange(2, 8))
	assertSets(t, fs, rs([2]int{0, 1}), nil, rs([2]int{9, 9}))
}

func TestMarkLinesDoesNotModifyInput(t *testing.T) {
	orig := FileState{Reviewed: rs([2]int{0, 9})}
	_ = MarkLines(orig, Ignored, rangeset.MustRange(3, 4))
	assert.Equal(t, "[(0,9)]", orig.Reviewed.String())
}

func TestMutualExclusivity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	states := []State{Reviewed, Modified, Ignored, Cleared}
	var fs FileState
	for i := 0; i < 2000; i++ {
		start := rng.Intn(80)
		r := rangeset.MustRange(start, start+rng.Intn(8))
		fs = MarkLines(fs, states[rng.Intn(len(states))], r)

		require.True(t, fs.Reviewed.Canonical())
		require.True(t, fs.Modified.Canonical())
		require.True(t, fs.Ignored.Canonical())
		for line := 0; line < 90; line++ {
			n := 0
			for _, s := range []rangeset.Set{fs.Reviewed, fs.Modified, fs.Ignored} {
				if s.Contains(line) {
					n++
				}
			}
			require.LessOrEqual(t, n, 1, "line %d in %d categories after step %d", line, n, i)
		}
	}
}

func TestUpdateReviews(t *testing.T) {
	other := FileState{Reviewed: rs([2]int{0, 4}), TotalLines: 5}
	cur := NewCommitState([]string{"vendor/"})
	cur.Files["other.go"] = other

	next := UpdateReviews(cur, Update{
		File:       "main.go",
		Range:      rangeset.MustRange(2, 3),
		State:      Reviewed,
		TotalLines: 10,
	})

	assert.NotContains(t, cur.Files, "main.go", "input snapshot must not change")
	require.Contains(t, next.Files, "main.go")
	assertSets(t, next.Files["main.go"], rs([2]int{2, 3}), nil, nil)
	assert.Equal(t, 10, next.Files["main.go"].TotalLines)
	assert.True(t, other.Equal(next.Files["other.go"]))
	assert.Equal(t, []string{"vendor/"}, next.Exclusions)

	next = UpdateReviews(next, Update{
		File:       "main.go",
		Range:      rangeset.MustRange(3, 3),
		State:      Cleared,
		TotalLines: 12,
	})
	assertSets(t, next.Files["main.go"], rs([2]int{2, 2}), nil, nil)
	assert.Equal(t, 12, next.Files["main.go"].TotalLines)
}

func TestUpdateValidate(t *testing.T) {
	ok := Update{File: "a.go", Range: rangeset.MustRange(0, 9), State: Ignored, TotalLines: 10}
	assert.NoError(t, ok.Validate())

	noName := ok
	noName.File = ""
	assert.ErrorIs(t, noName.Validate(), ErrInvalidUpdate)

	tooShort := ok
	tooShort.TotalLines = 9
	assert.ErrorIs(t, tooShort.Validate(), ErrInvalidUpdate)

	unknownTotal := ok
	unknownTotal.TotalLines = 0
	assert.NoError(t, unknownTotal.Validate())
}

func TestTransformReviewsNilDiff(t *testing.T) {
	cur := NewCommitState(nil)
	cur.Files["a.go"] = FileState{Reviewed: rs([2]int{0, 3})}
	next := TransformReviews(cur, nil)
	assert.Equal(t, cur, next)
}

func TestTransformReviewsNewFile(t *testing.T) {
	d := &Diff{Files: map[string][]LineDiff{"f": {{New: 3}}}}
	next := TransformReviews(NewCommitState(nil), d)
	require.Contains(t, next.Files, "f")
	assertSets(t, next.Files["f"], nil, rs([2]int{2, 2}), nil)
}

func TestTransformReviews(t *testing.T) {
	cur := NewCommitState(nil)
	cur.Files["a.go"] = FileState{
		Reviewed:   rs([2]int{0, 9}),
		Ignored:    rs([2]int{12, 14}),
		TotalLines: 15,
	}
	cur.Files["untouched.go"] = FileState{Reviewed: rs([2]int{0, 1})}

	d := &Diff{Files: map[string][]LineDiff{
		"a.go": {
			{Old: 4},         // deletion: no effect
			{New: 4},         // line 3 changed
			{New: 5},         // line 4 changed
			{Old: 9},         // deletion: no effect
			{New: 14},        // line 13 leaves ignored
			{Old: 2, New: 2}, // both sides: still anchored on the new line
		},
		"empty.go": {},
	}}

	next := TransformReviews(cur, d)
	assertSets(t, next.Files["a.go"],
		rs([2]int{0, 0}, [2]int{2, 2}, [2]int{5, 9}),
		rs([2]int{1, 1}, [2]int{3, 4}, [2]int{13, 13}),
		rs([2]int{12, 12}, [2]int{14, 14}))
	assert.Equal(t, 15, next.Files["a.go"].TotalLines)
	assert.True(t, cur.Files["untouched.go"].Equal(next.Files["untouched.go"]))
	assert.NotContains(t, next.Files, "empty.go")

	assert.Equal(t, "[(0,9)]", cur.Files["a.go"].Reviewed.String(), "input snapshot must not change")
}

func TestTransformPureDeletionLeavesRangesAlone(t *testing.T) {
	cur := NewCommitState(nil)
	cur.Files["a.go"] = FileState{Reviewed: rs([2]int{0, 5})}
	d := &Diff{Files: map[string][]LineDiff{"a.go": {{Old: 3}, {Old: 4}}}}
	next := TransformReviews(cur, d)
	assertSets(t, next.Files["a.go"], rs([2]int{0, 5}), nil, nil)
}

func TestNewLineDiff(t *testing.T) {
	_, err := NewLineDiff(0, 0)
	assert.ErrorIs(t, err, ErrInvalidLineDiff)
	_, err = NewLineDiff(-1, 2)
	assert.ErrorIs(t, err, ErrInvalidLineDiff)

	ld, err := NewLineDiff(4, 0)
	require.NoError(t, err)
	assert.True(t, ld.Deletion())
	assert.False(t, ld.Insertion())
}

func TestStateJSON(t *testing.T) {
	var s State
	require.NoError(t, json.Unmarshal([]byte(`"Ignored"`), &s))
	assert.Equal(t, Ignored, s)

	require.NoError(t, json.Unmarshal([]byte(`"cleared"`), &s))
	assert.Equal(t, Cleared, s)

	assert.Error(t, json.Unmarshal([]byte(`"Approved"`), &s))

	data, err := json.Marshal(Modified)
	require.NoError(t, err)
	assert.Equal(t, `"Modified"`, string(data))
}

func TestFileStateJSON(t *testing.T) {
	fs := FileState{Reviewed: rs([2]int{0, 2}), TotalLines: 4}
	data, err := json.Marshal(fs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reviewed":[[0,2]],"modified":[],"ignored":[],"total_lines":4}`, string(data))

	var back FileState
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, fs.Equal(back))
}

func TestProgress(t *testing.T) {
	fs := FileState{
		Reviewed:   rs([2]int{0, 4}),
		Modified:   rs([2]int{5, 6}),
		Ignored:    rs([2]int{7, 7}),
		TotalLines: 10,
	}
	p := Progress(fs)
	assert.Equal(t, Summary{Reviewed: 5, Modified: 2, Ignored: 1, Untracked: 2, Total: 10}, p)
	assert.InDelta(t, 60.0, p.Percent(), 0.001)

	stale := Progress(FileState{Reviewed: rs([2]int{0, 20}), TotalLines: 10})
	assert.Equal(t, 0, stale.Untracked)
	assert.InDelta(t, 100.0, stale.Percent(), 0.001)
}

func TestStateOf(t *testing.T) {
	fs := FileState{Reviewed: rs([2]int{0, 0}), Ignored: rs([2]int{2, 2})}
	st, ok := fs.StateOf(2)
	assert.True(t, ok)
	assert.Equal(t, Ignored, st)
	_, ok = fs.StateOf(1)
	assert.False(t, ok)
}
