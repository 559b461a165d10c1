package fsindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const entryColumns = "id, parent_id, type, name, path, base_path, size, modify_time, checksum"

// Upsert inserts or replaces an entry keyed by its relative path and returns
// the row id.
func (s *Store) Upsert(ctx context.Context, entry *Entry) (int64, error) {
	if entry == nil {
		return 0, errors.New("entry is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO entries (parent_id, type, name, path, base_path, size, modify_time, checksum)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET
             parent_id = excluded.parent_id,
             type = excluded.type,
             name = excluded.name,
             base_path = excluded.base_path,
             size = excluded.size,
             modify_time = excluded.modify_time,
             checksum = excluded.checksum`,
		entry.ParentID,
		entry.Type,
		entry.Name,
		entry.Path,
		entry.BasePath,
		entry.Size,
		entry.ModTime.UTC().Format(time.RFC3339Nano),
		nullableString(entry.Checksum),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert entry: %w", err)
	}
	// Conflict updates keep the existing row id, so resolve it by path.
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM entries WHERE path = ?`, entry.Path).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve upserted entry: %w", err)
	}
	entry.ID = id
	return id, nil
}

// GetByPath fetches an entry by its relative path. Returns nil when the path
// is not indexed.
func (s *Store) GetByPath(ctx context.Context, relPath string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE path = ?`, relPath)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// GetByID fetches an entry by row id.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// ListDir returns the immediate children of the directory with the given id,
// ordered by name.
func (s *Store) ListDir(ctx context.Context, parentID int64) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE parent_id = ? ORDER BY type DESC, name`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list dir: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// FilterPaths returns the subset of the given relative paths present in the
// index, in index order.
func (s *Store) FilterPaths(ctx context.Context, paths []string) ([]*Entry, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(paths))
	args := make([]any, len(paths))
	for i, p := range paths {
		args[i] = p
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE path IN (`+placeholders+`) ORDER BY path`, args...)
	if err != nil {
		return nil, fmt.Errorf("filter paths: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// RemoveSubtree deletes the entry at relPath and, when it is a directory,
// every row underneath it. Returns the number of removed rows.
func (s *Store) RemoveSubtree(ctx context.Context, relPath string, isDir bool) (int64, error) {
	escaped := escapeLike(relPath)
	var (
		res sql.Result
		err error
	)
	if isDir {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM entries WHERE path = ? OR path LIKE ? ESCAPE '`+likeEscape+`'`,
			relPath, escaped+"/%")
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM entries WHERE path = ?`, relPath)
	}
	if err != nil {
		return 0, fmt.Errorf("remove subtree: %w", err)
	}
	return res.RowsAffected()
}

// PrunePaths deletes the given relative paths in one statement batch.
func (s *Store) PrunePaths(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prune tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM entries WHERE path = ?`)
	if err != nil {
		return fmt.Errorf("prepare prune: %w", err)
	}
	defer stmt.Close()

	for _, p := range paths {
		if _, err := stmt.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("prune %q: %w", p, err)
		}
	}
	return tx.Commit()
}

// EntryPaths streams every indexed relative path to fn. Iteration stops on
// the first error.
func (s *Store) EntryPaths(ctx context.Context, fn func(relPath string, basePath string, entryType EntryType) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT path, base_path, type FROM entries`)
	if err != nil {
		return fmt.Errorf("iterate paths: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var relPath, basePath, entryType string
		if err := rows.Scan(&relPath, &basePath, &entryType); err != nil {
			return err
		}
		if err := fn(relPath, basePath, EntryType(entryType)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// PathSize returns the combined size in bytes of the entry at relPath and its
// descendants.
func (s *Store) PathSize(ctx context.Context, relPath string) (int64, error) {
	escaped := escapeLike(relPath)
	var size sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(size) FROM entries WHERE path = ? OR path LIKE ? ESCAPE '`+likeEscape+`'`,
		relPath, escaped+"/%").Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("path size: %w", err)
	}
	return size.Int64, nil
}

func collectEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id        int64
		parentID  int64
		entryType string
		name      string
		relPath   string
		basePath  string
		size      int64
		modifyRaw string
		checksum  sql.NullString
	)
	if err := scanner.Scan(&id, &parentID, &entryType, &name, &relPath, &basePath, &size, &modifyRaw, &checksum); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:       id,
		ParentID: parentID,
		Type:     EntryType(entryType),
		Name:     name,
		Path:     relPath,
		BasePath: basePath,
		Size:     size,
		Checksum: checksum.String,
	}
	if modified, err := parseTimeString(modifyRaw); err == nil {
		entry.ModTime = modified
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
