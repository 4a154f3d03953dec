package store

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/sprite-ai/auditor/internal/model"
	"github.com/sprite-ai/auditor/internal/review"
)

// fileRecord is everything stored about one file. It is also the on-disk
// document of the File store.
type fileRecord struct {
	FileName      string                      `json:"file_name"`
	LatestCommit  string                      `json:"latest_reviewed_commit"`
	CommitReviews map[string]review.FileState `json:"commit_reviews"`
	Comments      model.FileComments          `json:"comments"`
	Metadata      *model.Metadata             `json:"metadata,omitempty"`
}

func newFileRecord(name string) *fileRecord {
	return &fileRecord{
		FileName:      name,
		CommitReviews: map[string]review.FileState{},
		Comments:      model.FileComments{},
	}
}

func (r *fileRecord) latest() FileRecord {
	out := FileRecord{
		Name:     r.FileName,
		Commit:   r.LatestCommit,
		State:    r.CommitReviews[r.LatestCommit],
		Comments: r.Comments.Clone(),
	}
	if r.Metadata != nil {
		md := *r.Metadata
		out.Metadata = &md
	}
	return out
}

// clone returns a copy of r whose maps can be changed without affecting r.
func (r *fileRecord) clone() *fileRecord {
	out := *r
	out.CommitReviews = maps.Clone(r.CommitReviews)
	out.Comments = maps.Clone(r.Comments)
	if r.Metadata != nil {
		md := *r.Metadata
		out.Metadata = &md
	}
	return &out
}

// Memory is an in-process Store. Range sets are never modified in place by
// the review engine, so stored states are shared with callers without
// copying.
type Memory struct {
	mu    sync.RWMutex
	files map[string]*fileRecord

	// persist, when set, is called with the write lock held for every
	// changed record before it replaces the current one. unpersist undoes
	// persist for a record that did not exist before.
	persist   func(*fileRecord) error
	unpersist func(name string) error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{files: map[string]*fileRecord{}}
}

// draft returns a private copy of the record for name to modify, or a new
// record if name is not stored. Changes take effect through put.
func (m *Memory) draft(name string) *fileRecord {
	if rec, ok := m.files[name]; ok {
		return rec.clone()
	}
	return newFileRecord(name)
}

// put persists recs and then installs them. If persisting fails, records
// already written are put back on disk and memory is left unchanged.
func (m *Memory) put(recs ...*fileRecord) error {
	if m.persist != nil {
		for i, rec := range recs {
			if err := m.persist(rec); err != nil {
				return errors.Join(err, m.rollback(recs[:i]))
			}
		}
	}
	for _, rec := range recs {
		m.files[rec.FileName] = rec
	}
	return nil
}

func (m *Memory) rollback(written []*fileRecord) error {
	var errs []error
	for _, rec := range written {
		if old, ok := m.files[rec.FileName]; ok {
			errs = append(errs, m.persist(old))
		} else if m.unpersist != nil {
			errs = append(errs, m.unpersist(rec.FileName))
		}
	}
	return errors.Join(errs...)
}

func (m *Memory) LatestCommit(ctx context.Context, file string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.files[file]; ok {
		return rec.LatestCommit, nil
	}
	return "", nil
}

func (m *Memory) Snapshot(ctx context.Context, commit string) (review.CommitState, error) {
	state := review.NewCommitState(nil)
	if commit == "" {
		return state, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, rec := range m.files {
		if fs, ok := rec.CommitReviews[commit]; ok {
			state.Files[name] = fs
		}
	}
	return state, nil
}

func (m *Memory) Save(ctx context.Context, commit string, files map[string]review.FileState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := make([]*fileRecord, 0, len(files))
	for _, name := range slices.Sorted(maps.Keys(files)) {
		rec := m.draft(name)
		rec.CommitReviews[commit] = files[name]
		rec.LatestCommit = commit
		recs = append(recs, rec)
	}
	return m.put(recs...)
}

func (m *Memory) Files(ctx context.Context) ([]FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FileRecord, 0, len(m.files))
	for _, name := range slices.Sorted(maps.Keys(m.files)) {
		out = append(out, m.files[name].latest())
	}
	return out, nil
}

func (m *Memory) AddComment(ctx context.Context, file string, line int, body, author string) (model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := model.Comment{ID: uuid.NewString(), Body: body, Author: author}
	rec := m.draft(file)
	rec.Comments[line] = append(slices.Clip(rec.Comments[line]), c)
	if err := m.put(rec); err != nil {
		return model.Comment{}, err
	}
	return c, nil
}

// lineComments returns a draft of the record and the comment list for
// file:line.
func (m *Memory) lineComments(file string, line int) (*fileRecord, []model.Comment, error) {
	rec, ok := m.files[file]
	if !ok {
		return nil, nil, ErrUnknownFile
	}
	cs, ok := rec.Comments[line]
	if !ok {
		return nil, nil, ErrUnknownLine
	}
	return rec.clone(), cs, nil
}

func (m *Memory) UpdateComment(ctx context.Context, file string, line int, id, body, author string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, cs, err := m.lineComments(file, line)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(cs, func(c model.Comment) bool { return c.ID == id })
	if i < 0 {
		return ErrUnknownComment
	}
	cs = slices.Clone(cs)
	cs[i].Body = body
	cs[i].Author = author
	rec.Comments[line] = cs
	return m.put(rec)
}

func (m *Memory) DeleteComment(ctx context.Context, file string, line int, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, cs, err := m.lineComments(file, line)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(cs, func(c model.Comment) bool { return c.ID == id })
	if i < 0 {
		return ErrUnknownComment
	}
	cs = slices.Delete(slices.Clone(cs), i, i+1)
	if len(cs) == 0 {
		delete(rec.Comments, line)
	} else {
		rec.Comments[line] = cs
	}
	return m.put(rec)
}

func (m *Memory) Comments(ctx context.Context, file string) (model.FileComments, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.files[file]
	if !ok {
		return model.FileComments{}, nil
	}
	return rec.Comments.Clone(), nil
}

func (m *Memory) SetMetadata(ctx context.Context, file string, md model.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[file]; !ok {
		return ErrUnknownFile
	}
	rec := m.draft(file)
	rec.Metadata = &md
	return m.put(rec)
}

func (m *Memory) Close() error { return nil }
