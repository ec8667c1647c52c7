// Package sqlite stores segment rows in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"semsearch/internal/domain"
	"semsearch/internal/textstore/sqlite/migrations"
)

// maxParams bounds the number of placeholders in one IN clause.
const maxParams = 500

// Store is a TextStore backed by a single SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database at path and applies migrations.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// WAL lets concurrent searches read while an ingest writes.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_segments.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Insert writes one segment row. Both the surrogate key and the
// (document_id, segment_id) pair must be new.
func (s *Store) Insert(ctx context.Context, seg domain.Segment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO segment (surrogate_key, document_id, segment_id, title, url, content)
		VALUES (?, ?, ?, ?, ?, ?)
	`, seg.SurrogateKey, seg.DocumentID, seg.SegmentID, seg.Title, seg.URL, seg.Content)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: key %d (document %d, segment %d)",
				domain.ErrDuplicateSegment, seg.SurrogateKey, seg.DocumentID, seg.SegmentID)
		}
		return fmt.Errorf("inserting segment %d: %w", seg.SurrogateKey, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const selectSegment = `SELECT surrogate_key, document_id, segment_id, title, url, content FROM segment`

func scanSegment(row interface{ Scan(...any) error }) (domain.Segment, error) {
	var seg domain.Segment
	err := row.Scan(&seg.SurrogateKey, &seg.DocumentID, &seg.SegmentID, &seg.Title, &seg.URL, &seg.Content)
	return seg, err
}

// Get returns the segment with the given surrogate key.
func (s *Store) Get(ctx context.Context, key int64) (domain.Segment, error) {
	seg, err := scanSegment(s.db.QueryRowContext(ctx, selectSegment+" WHERE surrogate_key = ?", key))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Segment{}, fmt.Errorf("segment %d: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Segment{}, fmt.Errorf("getting segment %d: %w", key, err)
	}
	return seg, nil
}

// GetByKeys fetches the rows for keys. Keys without a row are absent from the result.
func (s *Store) GetByKeys(ctx context.Context, keys []int64) (map[int64]domain.Segment, error) {
	out := make(map[int64]domain.Segment, len(keys))
	for start := 0; start < len(keys); start += maxParams {
		batch := keys[start:min(start+maxParams, len(keys))]
		args := make([]any, len(batch))
		for i, k := range batch {
			args[i] = k
		}
		query := selectSegment + " WHERE surrogate_key IN (?" + strings.Repeat(",?", len(batch)-1) + ")"
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("getting segments: %w", err)
		}
		for rows.Next() {
			seg, err := scanSegment(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning segment: %w", err)
			}
			out[seg.SurrogateKey] = seg
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterating segments: %w", err)
		}
	}
	return out, nil
}

// MaxKey returns the largest surrogate key in use, or 0 for an empty store.
func (s *Store) MaxKey(ctx context.Context) (int64, error) {
	var key int64
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(surrogate_key), 0) FROM segment").Scan(&key); err != nil {
		return 0, fmt.Errorf("getting max key: %w", err)
	}
	return key, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM segment").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting segments: %w", err)
	}
	return n, nil
}

// SaveIndexInfo records the embedding space of the current vector index.
func (s *Store) SaveIndexInfo(ctx context.Context, info domain.IndexInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_info (id, model, dimension, collection, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			model = excluded.model,
			dimension = excluded.dimension,
			collection = excluded.collection,
			updated_at = excluded.updated_at
	`, info.Model, info.Dimension, info.Collection)
	if err != nil {
		return fmt.Errorf("saving index info: %w", err)
	}
	return nil
}

func (s *Store) IndexInfo(ctx context.Context) (domain.IndexInfo, error) {
	var info domain.IndexInfo
	err := s.db.QueryRowContext(ctx, "SELECT model, dimension, collection FROM index_info WHERE id = 1").
		Scan(&info.Model, &info.Dimension, &info.Collection)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IndexInfo{}, fmt.Errorf("index info: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.IndexInfo{}, fmt.Errorf("getting index info: %w", err)
	}
	return info, nil
}

// Clear deletes every segment row and the recorded index info.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning clear: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	for _, stmt := range []string{"DELETE FROM segment", "DELETE FROM index_info"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing store: %w", err)
		}
	}
	return tx.Commit()
}
