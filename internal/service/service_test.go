package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/auditor/internal/model"
	"github.com/sprite-ai/auditor/internal/pathfilter"
	"github.com/sprite-ai/auditor/internal/rangeset"
	"github.com/sprite-ai/auditor/internal/review"
	"github.com/sprite-ai/auditor/internal/store"
)

// fakeProvider serves canned diffs keyed by the prior commit.
type fakeProvider struct {
	mu    sync.Mutex
	head  string
	diffs map[string]*review.Diff
	calls int
}

func (p *fakeProvider) CurrentCommit(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.head == "" {
		return "", fmt.Errorf("no head")
	}
	return p.head, nil
}

func (p *fakeProvider) Diff(ctx context.Context, prior string, exclusions []string) (*review.Diff, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if prior == "" || prior == p.head {
		return nil, nil
	}
	d, ok := p.diffs[prior]
	if !ok {
		return nil, fmt.Errorf("unknown commit %s", prior)
	}
	return d, nil
}

func (p *fakeProvider) checkout(head string) {
	p.mu.Lock()
	p.head = head
	p.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *fakeProvider, store.Store) {
	t.Helper()
	st := store.NewMemory()
	p := &fakeProvider{head: "c1", diffs: map[string]*review.Diff{}}
	svc := New(st, p, Options{
		RepoPath:   "/src/project",
		Exclusions: []string{"vendor/"},
		Filter:     pathfilter.Filter{Extensions: []string{".go"}},
	})
	return svc, p, st
}

func mark(file string, start, end int, st review.State, total int) review.Update {
	return review.Update{File: file, Range: rangeset.MustRange(start, end), State: st, TotalLines: total}
}

func TestNormalize(t *testing.T) {
	svc, _, _ := newTestService(t)
	tests := map[string]string{
		"/src/project/main.go":    "main.go",
		"/src/project/pkg/a.go":   "pkg/a.go",
		"pkg/a.go":                "pkg/a.go",
		"/pkg/a.go":               "pkg/a.go",
		" /src/project/b.go ":     "b.go",
		"/src/project-other/c.go": "src/project-other/c.go",
		"/src/project":            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, svc.Normalize(in), in)
	}
}

func TestUpdateAndReadBack(t *testing.T) {
	ctx := context.Background()
	svc, _, st := newTestService(t)

	fs, commit, err := svc.ReviewState(ctx, "main.go")
	require.NoError(t, err)
	assert.Empty(t, commit)
	assert.True(t, fs.Equal(review.FileState{}))

	fs, err = svc.UpdateReviewState(ctx, mark("/src/project/main.go", 0, 4, review.Reviewed, 10))
	require.NoError(t, err)
	assert.Equal(t, "[(0,4)]", fs.Reviewed.String())

	fs, commit, err = svc.ReviewState(ctx, "main.go")
	require.NoError(t, err)
	assert.Equal(t, "c1", commit)
	assert.Equal(t, "[(0,4)]", fs.Reviewed.String())
	assert.Equal(t, 10, fs.TotalLines)

	_, err = svc.UpdateReviewState(ctx, mark("main.go", 3, 5, review.Ignored, 10))
	require.NoError(t, err)
	fs, _, err = svc.ReviewState(ctx, "main.go")
	require.NoError(t, err)
	assert.Equal(t, "[(0,2)]", fs.Reviewed.String())
	assert.Equal(t, "[(3,5)]", fs.Ignored.String())

	// Only the touched file is saved.
	snap, err := st.Snapshot(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, snap.FileNames())
}

func TestUpdateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.UpdateReviewState(ctx, mark("main.go", 0, 10, review.Reviewed, 10))
	assert.ErrorIs(t, err, review.ErrInvalidUpdate)

	_, err = svc.UpdateReviewState(ctx, mark("/src/project", 0, 1, review.Reviewed, 10))
	assert.ErrorIs(t, err, review.ErrInvalidUpdate)

	_, _, err = svc.ReviewState(ctx, "")
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestTransform(t *testing.T) {
	ctx := context.Background()
	svc, p, st := newTestService(t)

	_, err := svc.UpdateReviewState(ctx, mark("a.go", 0, 9, review.Reviewed, 10))
	require.NoError(t, err)
	_, err = svc.UpdateReviewState(ctx, mark("b.go", 0, 1, review.Reviewed, 2))
	require.NoError(t, err)

	// Nothing to compare while HEAD has not moved.
	fs, changed, err := svc.TransformReviewState(ctx, "a.go")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "[(0,9)]", fs.Reviewed.String())

	p.diffs["c1"] = &review.Diff{Files: map[string][]review.LineDiff{
		"a.go": {{New: 3}, {New: 4}, {Old: 8}},
	}}
	p.checkout("c2")

	fs, changed, err = svc.TransformReviewState(ctx, "a.go")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "[(0,1),(4,9)]", fs.Reviewed.String())
	assert.Equal(t, "[(2,3)]", fs.Modified.String())
	assert.Equal(t, 10, fs.TotalLines)

	// Every file of the old snapshot moves to the new commit.
	snap, err := st.Snapshot(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, snap.FileNames())
	assert.Equal(t, "[(0,1)]", snap.Files["b.go"].Reviewed.String())

	commit, err := st.LatestCommit(ctx, "b.go")
	require.NoError(t, err)
	assert.Equal(t, "c2", commit)

	// The old snapshot is kept.
	old, err := st.Snapshot(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "[(0,9)]", old.Files["a.go"].Reviewed.String())
}

func TestTransformUnknownFile(t *testing.T) {
	svc, p, _ := newTestService(t)
	fs, changed, err := svc.TransformReviewState(context.Background(), "nope.go")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, fs.Equal(review.FileState{}))
	assert.Zero(t, p.calls)
}

func TestTransformAll(t *testing.T) {
	ctx := context.Background()
	svc, p, st := newTestService(t)

	_, err := svc.UpdateReviewState(ctx, mark("a.go", 0, 4, review.Reviewed, 5))
	require.NoError(t, err)
	p.checkout("c2")
	_, err = svc.UpdateReviewState(ctx, mark("b.go", 0, 4, review.Reviewed, 5))
	require.NoError(t, err)

	p.diffs["c1"] = &review.Diff{Files: map[string][]review.LineDiff{"a.go": {{New: 1}}}}
	p.diffs["c2"] = &review.Diff{Files: map[string][]review.LineDiff{"b.go": {{New: 5}}}}
	p.checkout("c3")

	moved, err := svc.TransformAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	snap, err := st.Snapshot(ctx, "c3")
	require.NoError(t, err)
	assert.Equal(t, "[(1,4)]", snap.Files["a.go"].Reviewed.String())
	assert.Equal(t, "[(0,3)]", snap.Files["b.go"].Reviewed.String())
	assert.Equal(t, "[(4,4)]", snap.Files["b.go"].Modified.String())

	moved, err = svc.TransformAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)
}

// historyFixture stores x.go and y.go at c1, then y.go again at c2, and
// moves HEAD to c3. The c1 diff touches both files.
func historyFixture(t *testing.T) (*Service, *fakeProvider, store.Store) {
	t.Helper()
	ctx := context.Background()
	svc, p, st := newTestService(t)

	_, err := svc.UpdateReviewState(ctx, mark("x.go", 0, 0, review.Reviewed, 10))
	require.NoError(t, err)
	_, err = svc.UpdateReviewState(ctx, mark("y.go", 0, 0, review.Reviewed, 10))
	require.NoError(t, err)
	p.checkout("c2")
	_, err = svc.UpdateReviewState(ctx, mark("y.go", 5, 5, review.Reviewed, 10))
	require.NoError(t, err)

	p.diffs["c1"] = &review.Diff{Files: map[string][]review.LineDiff{
		"x.go": {{New: 1}},
		"y.go": {{New: 1}},
	}}
	p.diffs["c2"] = &review.Diff{Files: map[string][]review.LineDiff{
		"x.go": {{New: 3}},
		"y.go": {{New: 6}},
	}}
	p.checkout("c3")
	return svc, p, st
}

func TestTransformKeepsNewerStateOfOtherFiles(t *testing.T) {
	ctx := context.Background()
	svc, _, st := historyFixture(t)

	fs, changed, err := svc.TransformReviewState(ctx, "x.go")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "[(0,0)]", fs.Modified.String())

	// y.go moved on to c2, so the c1 transform must not touch it.
	y, commit, err := svc.ReviewState(ctx, "y.go")
	require.NoError(t, err)
	assert.Equal(t, "c2", commit)
	assert.Equal(t, "[(0,0),(5,5)]", y.Reviewed.String())
	assert.Empty(t, y.Modified)

	y, changed, err = svc.TransformReviewState(ctx, "y.go")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "[(0,0)]", y.Reviewed.String())
	assert.Equal(t, "[(5,5)]", y.Modified.String())

	snap, err := st.Snapshot(ctx, "c3")
	require.NoError(t, err)
	assert.Equal(t, "[(0,0)]", snap.Files["x.go"].Modified.String(), "x.go must not get the c2 diff")
}

func TestTransformAllUsesEachFilesLatestCommit(t *testing.T) {
	ctx := context.Background()
	svc, _, st := historyFixture(t)

	moved, err := svc.TransformAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	snap, err := st.Snapshot(ctx, "c3")
	require.NoError(t, err)
	require.Equal(t, []string{"x.go", "y.go"}, snap.FileNames())
	assert.Empty(t, snap.Files["x.go"].Reviewed)
	assert.Equal(t, "[(0,0)]", snap.Files["x.go"].Modified.String())
	assert.Equal(t, "[(0,0)]", snap.Files["y.go"].Reviewed.String())
	assert.Equal(t, "[(5,5)]", snap.Files["y.go"].Modified.String())
}

func TestTransformSkipsGlobExcludedFiles(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p := &fakeProvider{head: "c1", diffs: map[string]*review.Diff{}}
	svc := New(st, p, Options{
		Filter: pathfilter.Filter{
			Extensions:    []string{".go"},
			ExcludedGlobs: []string{"**/*_gen.go"},
		},
	})

	_, err := svc.UpdateReviewState(ctx, mark("main.go", 0, 1, review.Reviewed, 5))
	require.NoError(t, err)
	p.diffs["c1"] = &review.Diff{Files: map[string][]review.LineDiff{
		"main.go":        {{New: 1}},
		"pkg/api_gen.go": {{New: 1}, {New: 2}},
	}}
	p.checkout("c2")

	_, changed, err := svc.TransformReviewState(ctx, "main.go")
	require.NoError(t, err)
	assert.True(t, changed)

	commit, err := st.LatestCommit(ctx, "pkg/api_gen.go")
	require.NoError(t, err)
	assert.Empty(t, commit, "glob-excluded file must not be tracked")
	assert.Len(t, p.diffs["c1"].Files, 2, "provider diff must not be modified")
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	svc, p, _ := newTestService(t)

	_, err := svc.UpdateReviewState(ctx, mark("a.go", 0, 4, review.Reviewed, 10))
	require.NoError(t, err)
	_, err = svc.UpdateReviewState(ctx, mark("README.md", 0, 1, review.Reviewed, 2))
	require.NoError(t, err)
	require.NoError(t, svc.SetMetadata(ctx, "a.go", model.Metadata{Priority: model.PriorityHigh}))
	p.checkout("c2")

	info, err := svc.Info(ctx)
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Equal(t, "a.go", info[0].FileName)
	assert.True(t, info[0].Stale)
	assert.Equal(t, 5, info[0].Summary.Reviewed)
	assert.Equal(t, 5, info[0].Summary.Untracked)
	assert.Equal(t, "[(0,4)]", info[0].LineReviews.Reviewed.String())
	require.NotNil(t, info[0].Priority)
	assert.Equal(t, model.PriorityHigh, *info[0].Priority)
}

func TestCommentsAndEvents(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	events, cancel := svc.Subscribe(8)
	defer cancel()

	c, err := svc.AddComment(ctx, "/src/project/a.go", 2, "why?", "ana")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateComment(ctx, "a.go", 2, c.ID, "why not?", "ana"))

	comments, err := svc.Comments(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, comments[2], 1)
	assert.Equal(t, "why not?", comments[2][0].Body)

	require.NoError(t, svc.DeleteComment(ctx, "a.go", 2, c.ID))
	assert.ErrorIs(t, svc.DeleteComment(ctx, "a.go", 2, c.ID), store.ErrUnknownLine)

	_, err = svc.UpdateReviewState(ctx, mark("a.go", 0, 0, review.Reviewed, 3))
	require.NoError(t, err)

	var kinds []EventKind
	for range 4 {
		ev := <-events
		assert.Equal(t, "a.go", ev.File)
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventComment, EventComment, EventComment, EventUpdate}, kinds)

	cancel()
	_, open := <-events
	assert.False(t, open)
}

func TestConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateReviewState(ctx, mark("a.go", i*2, i*2, review.Reviewed, 100))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	fs, _, err := svc.ReviewState(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, 50, fs.Reviewed.Lines())
}
