// Package store persists review snapshots per commit, along with the line
// comments and metadata attached to each tracked file.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sprite-ai/auditor/internal/model"
	"github.com/sprite-ai/auditor/internal/review"
)

var (
	ErrUnknownFile    = errors.New("file not found in store")
	ErrUnknownLine    = errors.New("line has no comments")
	ErrUnknownComment = errors.New("comment not found")
	ErrUnknownKind    = errors.New("unknown store kind")
)

// Store is the persistence boundary of the review engine. Implementations
// must be safe for concurrent use; they do not serialize read-modify-write
// sequences across calls.
type Store interface {
	// LatestCommit returns the commit the file's state was last stored
	// under, or "" if it has never been reviewed.
	LatestCommit(ctx context.Context, file string) (string, error)

	// Snapshot returns the state of every file stored under commit. An
	// empty commit yields an empty snapshot.
	Snapshot(ctx context.Context, commit string) (review.CommitState, error)

	// Save stores each file's state under commit and makes commit the
	// file's latest.
	Save(ctx context.Context, commit string, files map[string]review.FileState) error

	// Files returns the latest record of every tracked file, sorted by name.
	Files(ctx context.Context) ([]FileRecord, error)

	AddComment(ctx context.Context, file string, line int, body, author string) (model.Comment, error)
	UpdateComment(ctx context.Context, file string, line int, id, body, author string) error
	DeleteComment(ctx context.Context, file string, line int, id string) error
	// Comments returns the comments of a file; untracked files have none.
	Comments(ctx context.Context, file string) (model.FileComments, error)

	// SetMetadata replaces a tracked file's metadata.
	SetMetadata(ctx context.Context, file string, md model.Metadata) error

	Close() error
}

// FileRecord is the latest known information about one file.
type FileRecord struct {
	Name     string
	Commit   string
	State    review.FileState
	Comments model.FileComments
	Metadata *model.Metadata
}

// Kind names a Store implementation.
type Kind string

const (
	KindMemory Kind = "memory"
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
)

// Open opens a store of the given kind. path is a directory for KindFile
// and a database file for KindSQLite; KindMemory ignores it.
func Open(kind Kind, path string) (Store, error) {
	switch kind {
	case KindMemory:
		return NewMemory(), nil
	case KindFile:
		return OpenFile(path)
	case KindSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
