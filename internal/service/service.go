// Package service ties the review engine to a snapshot store and a diff
// provider. It owns the read-modify-write sequence of every transition and
// serializes writers, which the engine and the stores leave to the caller.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sprite-ai/auditor/internal/model"
	"github.com/sprite-ai/auditor/internal/pathfilter"
	"github.com/sprite-ai/auditor/internal/review"
	"github.com/sprite-ai/auditor/internal/store"
)

var ErrNoFile = errors.New("missing file name")

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_transitions_total",
		Help: "Review state transitions by kind",
	}, []string{"kind"})

	transitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auditor_transition_duration_seconds",
		Help:    "Duration of review state transitions, including storage",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"kind"})

	diffLinesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditor_diff_lines_total",
		Help: "Changed line entries applied by transforms",
	})
)

// Provider reports the current commit and the changed lines since an
// earlier one. *vcs.Repository implements it.
type Provider interface {
	CurrentCommit(ctx context.Context) (string, error)
	// Diff returns nil when there is nothing to compare.
	Diff(ctx context.Context, prior string, exclusions []string) (*review.Diff, error)
}

// Options configures a Service.
type Options struct {
	// RepoPath is stripped from incoming file names.
	RepoPath string
	// Exclusions are path prefixes left out of diffs.
	Exclusions []string
	// Filter selects the files reported by Info.
	Filter pathfilter.Filter
	Logger *slog.Logger
}

// EventKind names what changed.
type EventKind string

const (
	EventUpdate    EventKind = "update"
	EventTransform EventKind = "transform"
	EventComment   EventKind = "comment"
	EventMetadata  EventKind = "metadata"
)

// Event announces a change to one file.
type Event struct {
	Kind   EventKind
	File   string
	Commit string
}

// FileInfo is the latest known state of one tracked file.
type FileInfo struct {
	FileName    string             `json:"file_name"`
	Commit      string             `json:"commit"`
	Stale       bool               `json:"stale"`
	LineReviews review.FileState   `json:"line_reviews"`
	Summary     review.Summary     `json:"summary"`
	Comments    model.FileComments `json:"comments"`
	Priority    *model.Priority    `json:"priority"`
}

// Service runs review transitions against a store.
type Service struct {
	store    store.Store
	provider Provider
	opts     Options
	log      *slog.Logger

	// mu serializes every read-modify-write of the store.
	mu sync.Mutex

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New returns a Service over st and p.
func New(st store.Store, p Provider, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    st,
		provider: p,
		opts:     opts,
		log:      logger,
		subs:     map[int]chan Event{},
	}
}

// Normalize turns an absolute or repository-relative name into the key the
// store uses: slash separated, relative to the repository root.
func (s *Service) Normalize(name string) string {
	name = filepath.ToSlash(strings.TrimSpace(name))
	if root := filepath.ToSlash(s.opts.RepoPath); root != "" {
		root = strings.TrimSuffix(root, "/")
		if name == root {
			return ""
		}
		name = strings.TrimPrefix(name, root+"/")
	}
	return strings.TrimLeft(name, "/")
}

// ReviewState returns the latest stored state of a file and the commit it
// belongs to. An unknown file has an empty state and no commit.
func (s *Service) ReviewState(ctx context.Context, file string) (review.FileState, string, error) {
	file = s.Normalize(file)
	if file == "" {
		return review.FileState{}, "", ErrNoFile
	}
	commit, err := s.store.LatestCommit(ctx, file)
	if err != nil {
		return review.FileState{}, "", err
	}
	if commit == "" {
		return review.FileState{}, "", nil
	}
	snap, err := s.store.Snapshot(ctx, commit)
	if err != nil {
		return review.FileState{}, "", err
	}
	return snap.File(file), commit, nil
}

// UpdateReviewState applies a manual update to the file's latest state and
// stores the result under the current commit.
func (s *Service) UpdateReviewState(ctx context.Context, u review.Update) (review.FileState, error) {
	u.File = s.Normalize(u.File)
	if err := u.Validate(); err != nil {
		return review.FileState{}, err
	}
	defer observe(string(EventUpdate), time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.latestSnapshot(ctx, u.File)
	if err != nil {
		return review.FileState{}, err
	}
	head, err := s.provider.CurrentCommit(ctx)
	if err != nil {
		return review.FileState{}, fmt.Errorf("resolving current commit: %w", err)
	}

	next := review.UpdateReviews(cur, u)
	fs := next.File(u.File)
	if err := s.store.Save(ctx, head, map[string]review.FileState{u.File: fs}); err != nil {
		return review.FileState{}, fmt.Errorf("saving %s: %w", u.File, err)
	}

	s.log.Debug("review updated",
		"file", u.File,
		"state", u.State.String(),
		"range", u.Range.String(),
		"commit", head)
	s.publish(Event{Kind: EventUpdate, File: u.File, Commit: head})
	return fs, nil
}

// TransformReviewState carries the file's snapshot forward to the current
// commit. Every file whose latest state is in that snapshot is stored under
// the current commit.
// changed is false when there was nothing to transform.
func (s *Service) TransformReviewState(ctx context.Context, file string) (fs review.FileState, changed bool, err error) {
	file = s.Normalize(file)
	if file == "" {
		return review.FileState{}, false, ErrNoFile
	}
	defer observe(string(EventTransform), time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	prior, err := s.store.LatestCommit(ctx, file)
	if err != nil {
		return review.FileState{}, false, err
	}
	next, head, err := s.transformCommit(ctx, prior)
	if err != nil {
		return review.FileState{}, false, err
	}
	if head == "" {
		return next.File(file), false, nil
	}
	return next.File(file), true, nil
}

// TransformAll brings every stale snapshot forward to the current commit
// and returns the number of files moved.
func (s *Service) TransformAll(ctx context.Context) (int, error) {
	defer observe("transform_all", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.store.Files(ctx)
	if err != nil {
		return 0, err
	}
	head, err := s.provider.CurrentCommit(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolving current commit: %w", err)
	}

	commits := map[string]struct{}{}
	for _, f := range files {
		if f.Commit != "" && f.Commit != head {
			commits[f.Commit] = struct{}{}
		}
	}

	moved := 0
	for _, commit := range slices.Sorted(maps.Keys(commits)) {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		next, to, err := s.transformCommit(ctx, commit)
		if err != nil {
			return moved, err
		}
		if to != "" {
			moved += len(next.Files)
		}
	}
	if moved > 0 {
		s.log.Info("transformed stale reviews", "files", moved, "commits", len(commits), "head", head)
	}
	return moved, nil
}

// transformCommit applies the diff from prior to HEAD to the snapshot at
// prior and saves it. It returns the snapshot and the commit it was saved
// under, or "" when nothing was saved. s.mu must be held.
func (s *Service) transformCommit(ctx context.Context, prior string) (review.CommitState, string, error) {
	cur, err := s.snapshot(ctx, prior)
	if err != nil {
		return review.CommitState{}, "", err
	}
	if prior == "" {
		return cur, "", nil
	}

	d, err := s.provider.Diff(ctx, prior, s.opts.Exclusions)
	if err != nil {
		return review.CommitState{}, "", fmt.Errorf("diffing from %s: %w", prior, err)
	}
	if d == nil {
		return cur, "", nil
	}
	d = &review.Diff{Files: d.Files}
	head, err := s.provider.CurrentCommit(ctx)
	if err != nil {
		return review.CommitState{}, "", fmt.Errorf("resolving current commit: %w", err)
	}

	if err := s.currentOnly(ctx, prior, &cur, d); err != nil {
		return review.CommitState{}, "", err
	}

	next := review.TransformReviews(cur, d)
	if len(next.Files) > 0 {
		if err := s.store.Save(ctx, head, next.Files); err != nil {
			return review.CommitState{}, "", fmt.Errorf("saving transform to %s: %w", head, err)
		}
	}
	diffLinesTotal.Add(float64(d.Lines()))

	s.log.Debug("reviews transformed",
		"from", prior,
		"to", head,
		"files", len(next.Files),
		"diff_lines", d.Lines())
	for _, name := range next.FileNames() {
		s.publish(Event{Kind: EventTransform, File: name, Commit: head})
	}
	return next, head, nil
}

// currentOnly narrows cur and d to the files whose latest state is the one
// stored under prior. Files that have since been stored under another
// commit are carried forward from that commit instead. Diff entries for
// untracked files are kept unless the filter excludes them.
func (s *Service) currentOnly(ctx context.Context, prior string, cur *review.CommitState, d *review.Diff) error {
	records, err := s.store.Files(ctx)
	if err != nil {
		return err
	}
	latest := make(map[string]string, len(records))
	for _, r := range records {
		latest[r.Name] = r.Commit
	}

	files := make(map[string]review.FileState, len(cur.Files))
	for name, fs := range cur.Files {
		if latest[name] == prior {
			files[name] = fs
		}
	}
	cur.Files = files

	lines := make(map[string][]review.LineDiff, len(d.Files))
	for name, ld := range d.Files {
		if c := latest[name]; c != prior && c != "" {
			continue
		}
		if s.opts.Filter.Excluded(name) {
			continue
		}
		lines[name] = ld
	}
	d.Files = lines
	return nil
}

func (s *Service) latestSnapshot(ctx context.Context, file string) (review.CommitState, error) {
	commit, err := s.store.LatestCommit(ctx, file)
	if err != nil {
		return review.CommitState{}, err
	}
	return s.snapshot(ctx, commit)
}

func (s *Service) snapshot(ctx context.Context, commit string) (review.CommitState, error) {
	snap, err := s.store.Snapshot(ctx, commit)
	if err != nil {
		return review.CommitState{}, fmt.Errorf("loading snapshot %s: %w", commit, err)
	}
	snap.Exclusions = s.opts.Exclusions
	return snap, nil
}

// Info summarizes every tracked file the filter allows.
func (s *Service) Info(ctx context.Context) ([]FileInfo, error) {
	files, err := s.store.Files(ctx)
	if err != nil {
		return nil, err
	}
	head, err := s.provider.CurrentCommit(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving current commit: %w", err)
	}

	out := make([]FileInfo, 0, len(files))
	for _, f := range files {
		if !s.opts.Filter.Allowed(f.Name) {
			continue
		}
		info := FileInfo{
			FileName:    f.Name,
			Commit:      f.Commit,
			Stale:       f.Commit != "" && f.Commit != head,
			LineReviews: f.State,
			Summary:     review.Progress(f.State),
			Comments:    f.Comments,
		}
		if f.Metadata != nil {
			p := f.Metadata.Priority
			info.Priority = &p
		}
		out = append(out, info)
	}
	return out, nil
}

// Comments returns the comments of a file.
func (s *Service) Comments(ctx context.Context, file string) (model.FileComments, error) {
	file = s.Normalize(file)
	if file == "" {
		return nil, ErrNoFile
	}
	return s.store.Comments(ctx, file)
}

func (s *Service) AddComment(ctx context.Context, file string, line int, body, author string) (model.Comment, error) {
	file = s.Normalize(file)
	if file == "" {
		return model.Comment{}, ErrNoFile
	}
	c, err := s.store.AddComment(ctx, file, line, body, author)
	if err != nil {
		return model.Comment{}, err
	}
	s.publish(Event{Kind: EventComment, File: file})
	return c, nil
}

func (s *Service) UpdateComment(ctx context.Context, file string, line int, id, body, author string) error {
	file = s.Normalize(file)
	if err := s.store.UpdateComment(ctx, file, line, id, body, author); err != nil {
		return err
	}
	s.publish(Event{Kind: EventComment, File: file})
	return nil
}

func (s *Service) DeleteComment(ctx context.Context, file string, line int, id string) error {
	file = s.Normalize(file)
	if err := s.store.DeleteComment(ctx, file, line, id); err != nil {
		return err
	}
	s.publish(Event{Kind: EventComment, File: file})
	return nil
}

// SetMetadata replaces the metadata of a tracked file.
func (s *Service) SetMetadata(ctx context.Context, file string, md model.Metadata) error {
	file = s.Normalize(file)
	if err := s.store.SetMetadata(ctx, file, md); err != nil {
		return err
	}
	s.publish(Event{Kind: EventMetadata, File: file})
	return nil
}

// Subscribe returns a channel of change events and a function that ends the
// subscription. Events are dropped for subscribers whose buffer is full.
func (s *Service) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Service) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.Warn("dropping event for slow subscriber", "kind", ev.Kind, "file", ev.File)
		}
	}
}

func observe(kind string, start time.Time) {
	transitionsTotal.WithLabelValues(kind).Inc()
	transitionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
