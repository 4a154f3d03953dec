package store

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"lukechampine.com/blake3"

	"github.com/sprite-ai/auditor/internal/model"
	"github.com/sprite-ai/auditor/internal/review"
)

var recordFileRe = regexp.MustCompile(`^db_.*-[0-9a-f]{16}\.json$`)

// File is a Store that keeps one JSON document per tracked file in a
// directory. All records are loaded when the store is opened and each
// record is rewritten whenever it changes.
type File struct {
	*Memory
	dir string
}

// OpenFile opens (creating if needed) a directory-backed store.
func OpenFile(dir string) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading store directory: %w", err)
	}

	mem := NewMemory()
	for _, e := range entries {
		if e.IsDir() || !recordFileRe.MatchString(e.Name()) {
			continue
		}
		rec, err := readRecord(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		mem.files[rec.FileName] = rec
	}

	f := &File{Memory: mem, dir: dir}
	mem.persist = f.write
	mem.unpersist = f.remove
	return f, nil
}

func readRecord(p string) (*fileRecord, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p, err)
	}
	if rec.FileName == "" {
		return nil, fmt.Errorf("decoding %s: missing file_name", p)
	}
	if rec.CommitReviews == nil {
		rec.CommitReviews = map[string]review.FileState{}
	}
	if rec.Comments == nil {
		rec.Comments = model.FileComments{}
	}
	return &rec, nil
}

func (f *File) write(rec *fileRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", rec.FileName, err)
	}
	target := filepath.Join(f.dir, RecordName(rec.FileName))
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", rec.FileName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", rec.FileName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", rec.FileName, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", rec.FileName, err)
	}
	return nil
}

func (f *File) remove(name string) error {
	err := os.Remove(filepath.Join(f.dir, RecordName(name)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	return nil
}

// RecordName returns the document name used for a tracked path: its base
// name plus a hash of the full path, so that equal base names in different
// directories do not collide.
func RecordName(file string) string {
	sum := blake3.Sum256([]byte(file))
	return fmt.Sprintf("db_%s-%s.json", path.Base(file), hex.EncodeToString(sum[:8]))
}
