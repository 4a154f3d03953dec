package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sprite-ai/auditor/internal/model"
	"github.com/sprite-ai/auditor/internal/review"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

// SQLite is a Store backed by a SQLite database. Each file's state is kept
// per commit as a JSON document.
type SQLite struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens or creates the database at dbPath.
func OpenSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// Pragmas are per connection; a single connection also serializes
	// writers inside the process.
	conn.SetMaxOpenConns(1)

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLite{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

func (db *SQLite) LatestCommit(ctx context.Context, file string) (string, error) {
	var commit string
	err := db.conn.QueryRowContext(ctx,
		`SELECT latest_commit FROM files WHERE file_name = ?`, file,
	).Scan(&commit)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying latest commit: %w", err)
	}
	return commit, nil
}

func (db *SQLite) Snapshot(ctx context.Context, commit string) (review.CommitState, error) {
	state := review.NewCommitState(nil)
	if commit == "" {
		return state, nil
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT file_name, state FROM reviews WHERE commit_hash = ?`, commit)
	if err != nil {
		return state, fmt.Errorf("querying snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return state, fmt.Errorf("scanning snapshot: %w", err)
		}
		fs, err := decodeState(raw)
		if err != nil {
			return state, fmt.Errorf("decoding state of %s: %w", name, err)
		}
		state.Files[name] = fs
	}
	return state, rows.Err()
}

func (db *SQLite) Save(ctx context.Context, commit string, files map[string]review.FileState) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for _, name := range slices.Sorted(maps.Keys(files)) {
		raw, err := json.Marshal(files[name])
		if err != nil {
			return fmt.Errorf("encoding state of %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO files (file_name, latest_commit) VALUES (?, ?)
			 ON CONFLICT(file_name) DO UPDATE SET latest_commit = excluded.latest_commit`,
			name, commit,
		); err != nil {
			return fmt.Errorf("updating file %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reviews (file_name, commit_hash, state, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(file_name, commit_hash) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
			name, commit, string(raw), now,
		); err != nil {
			return fmt.Errorf("storing review of %s: %w", name, err)
		}
	}
	return tx.Commit()
}

func (db *SQLite) Files(ctx context.Context) ([]FileRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT f.file_name, f.latest_commit, f.priority, r.state
		FROM files f
		LEFT JOIN reviews r ON r.file_name = f.file_name AND r.commit_hash = f.latest_commit
		ORDER BY f.file_name`)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}

	var out []FileRecord
	for rows.Next() {
		var (
			rec      FileRecord
			priority sql.NullString
			raw      sql.NullString
		)
		if err := rows.Scan(&rec.Name, &rec.Commit, &priority, &raw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		if raw.Valid {
			if rec.State, err = decodeState(raw.String); err != nil {
				rows.Close()
				return nil, fmt.Errorf("decoding state of %s: %w", rec.Name, err)
			}
		}
		if priority.Valid {
			p, err := model.ParsePriority(priority.String)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("file %s: %w", rec.Name, err)
			}
			rec.Metadata = &model.Metadata{Priority: p}
		}
		out = append(out, rec)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Comments are loaded after the cursor is closed: the pool has a
	// single connection.
	for i := range out {
		if out[i].Comments, err = db.Comments(ctx, out[i].Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *SQLite) AddComment(ctx context.Context, file string, line int, body, author string) (model.Comment, error) {
	c := model.Comment{ID: uuid.NewString(), Body: body, Author: author}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return model.Comment{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO files (file_name) VALUES (?)`, file); err != nil {
		return model.Comment{}, fmt.Errorf("tracking file %s: %w", file, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO comments (id, file_name, line, body, author) VALUES (?, ?, ?, ?, ?)`,
		c.ID, file, line, body, author,
	); err != nil {
		return model.Comment{}, fmt.Errorf("inserting comment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Comment{}, err
	}
	return c, nil
}

// checkLine distinguishes an unknown file from a line without comments.
func (db *SQLite) checkLine(ctx context.Context, file string, line int) error {
	var files, comments int
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files WHERE file_name = ?),
			(SELECT COUNT(*) FROM comments WHERE file_name = ? AND line = ?)`,
		file, file, line,
	).Scan(&files, &comments)
	if err != nil {
		return fmt.Errorf("querying comments: %w", err)
	}
	if files == 0 {
		return ErrUnknownFile
	}
	if comments == 0 {
		return ErrUnknownLine
	}
	return nil
}

func (db *SQLite) UpdateComment(ctx context.Context, file string, line int, id, body, author string) error {
	if err := db.checkLine(ctx, file, line); err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE comments SET body = ?, author = ? WHERE id = ? AND file_name = ? AND line = ?`,
		body, author, id, file, line)
	if err != nil {
		return fmt.Errorf("updating comment: %w", err)
	}
	return requireAffected(res)
}

func (db *SQLite) DeleteComment(ctx context.Context, file string, line int, id string) error {
	if err := db.checkLine(ctx, file, line); err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM comments WHERE id = ? AND file_name = ? AND line = ?`, id, file, line)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownComment
	}
	return nil
}

func (db *SQLite) Comments(ctx context.Context, file string) (model.FileComments, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, line, body, author FROM comments WHERE file_name = ? ORDER BY line, rowid`, file)
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	defer rows.Close()

	out := model.FileComments{}
	for rows.Next() {
		var (
			c    model.Comment
			line int
		)
		if err := rows.Scan(&c.ID, &line, &c.Body, &c.Author); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		out[line] = append(out[line], c)
	}
	return out, rows.Err()
}

func (db *SQLite) SetMetadata(ctx context.Context, file string, md model.Metadata) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE files SET priority = ? WHERE file_name = ?`, md.Priority.String(), file)
	if err != nil {
		return fmt.Errorf("updating metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownFile
	}
	return nil
}

func decodeState(raw string) (review.FileState, error) {
	var fs review.FileState
	err := json.Unmarshal([]byte(raw), &fs)
	return fs, err
}
