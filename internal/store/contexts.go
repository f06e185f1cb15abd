package store

import (
	"bytes"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jward/arbor/internal/cache"
)

// --- Context operations ---

// SaveContext writes the resolved libraries of c under root, replacing any
// earlier payload for the same root.
func (s *Store) SaveContext(root string, c *cache.Context) error {
	var buf bytes.Buffer
	if err := c.WriteCache(&buf); err != nil {
		return fmt.Errorf("save context %s: %w", root, err)
	}
	_, err := s.db.Exec(
		`INSERT INTO contexts (root, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(root) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		root, buf.String(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save context %s: %w", root, err)
	}
	return nil
}

// LoadContext reads the payload stored for root into c. It reports false
// when nothing was saved for root.
func (s *Store) LoadContext(root string, c *cache.Context) (bool, error) {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM contexts WHERE root = ?", root).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load context %s: %w", root, err)
	}
	if err := c.ReadCache(strings.NewReader(payload)); err != nil {
		return false, fmt.Errorf("load context %s: %w", root, err)
	}
	return true, nil
}

// Roots returns every root with a saved context, sorted.
func (s *Store) Roots() ([]string, error) {
	rows, err := s.db.Query("SELECT root FROM contexts ORDER BY root")
	if err != nil {
		return nil, fmt.Errorf("roots: %w", err)
	}
	defer rows.Close()
	var roots []string
	for rows.Next() {
		var root string
		if err := rows.Scan(&root); err != nil {
			return nil, fmt.Errorf("scan root: %w", err)
		}
		roots = append(roots, root)
	}
	return roots, rows.Err()
}

// DeleteContext removes the saved context for root and its file records.
func (s *Store) DeleteContext(root string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, q := range []string{
		"DELETE FROM files WHERE root = ?",
		"DELETE FROM contexts WHERE root = ?",
	} {
		if _, err := tx.Exec(q, root); err != nil {
			return fmt.Errorf("delete context %s: %w", root, err)
		}
	}
	return tx.Commit()
}

// --- File operations ---

// File records the last analysis of one source file.
type File struct {
	Path       string
	Root       string
	Language   string
	Stamp      string
	ErrorCount int
	AnalyzedAt time.Time
}

// ReplaceFiles replaces every file record under root with files.
func (s *Store) ReplaceFiles(root string, files []*File) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM files WHERE root = ?", root); err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO files (path, root, language, stamp, error_count, analyzed_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET root = excluded.root, language = excluded.language,
		   stamp = excluded.stamp, error_count = excluded.error_count, analyzed_at = excluded.analyzed_at`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert file: %w", err)
	}
	defer stmt.Close()
	for _, f := range files {
		if _, err := stmt.Exec(f.Path, root, f.Language, f.Stamp, f.ErrorCount, f.AnalyzedAt); err != nil {
			return fmt.Errorf("insert file %s: %w", f.Path, err)
		}
	}
	return tx.Commit()
}

// FilesByRoot returns the file records under root, sorted by path.
func (s *Store) FilesByRoot(root string) ([]*File, error) {
	rows, err := s.db.Query(
		"SELECT path, root, language, stamp, error_count, analyzed_at FROM files WHERE root = ? ORDER BY path", root,
	)
	if err != nil {
		return nil, fmt.Errorf("files by root: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.Path, &f.Root, &f.Language, &f.Stamp, &f.ErrorCount, &f.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FileByPath returns the record for path, or nil when there is none.
func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT path, root, language, stamp, error_count, analyzed_at FROM files WHERE path = ?", path,
	).Scan(&f.Path, &f.Root, &f.Language, &f.Stamp, &f.ErrorCount, &f.AnalyzedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}
