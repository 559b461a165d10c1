package fsindex

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// SearchNames returns entries whose name matches any of the given words. Words are
// matched with SQL LIKE; wildcards in the words themselves are escaped. With
// wholeWords the name must equal a word exactly, otherwise matching is a
// case-folded substring test.
func (s *Store) SearchNames(ctx context.Context, words []string, wholeWords bool) ([]*Entry, error) {
	cleaned := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		cleaned = append(cleaned, word)
	}
	if len(cleaned) == 0 {
		return nil, nil
	}

	clauses := make([]string, 0, len(cleaned))
	args := make([]any, 0, len(cleaned))
	for _, word := range cleaned {
		escaped := escapeLike(word)
		if wholeWords {
			clauses = append(clauses, `name LIKE ? ESCAPE '`+likeEscape+`'`)
			args = append(args, escaped)
		} else {
			clauses = append(clauses, `lower(name) LIKE ? ESCAPE '`+likeEscape+`'`)
			args = append(args, "%"+foldCaser.String(escaped)+"%")
		}
	}

	query := `SELECT ` + entryColumns + ` FROM entries WHERE ` + strings.Join(clauses, " OR ") + ` ORDER BY type DESC, name`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search names: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// CountDescendants returns the number of entries under relPath subject to the
// given options.
func (s *Store) CountDescendants(ctx context.Context, relPath string, opts DescendantOptions) (int, error) {
	where, args := descendantFilter(relPath, opts)
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entries WHERE `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count descendants: %w", err)
	}
	return count, nil
}

// ListDescendants returns the subtree below relPath with paging, ordering,
// span, and type filters applied.
func (s *Store) ListDescendants(ctx context.Context, relPath string, opts DescendantOptions) ([]*Entry, error) {
	where, args := descendantFilter(relPath, opts)
	query := `SELECT ` + entryColumns + ` FROM entries WHERE ` + where + descendantOrder(opts.Order)
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	} else if opts.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list descendants: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func descendantFilter(relPath string, opts DescendantOptions) (string, []any) {
	var clauses []string
	var args []any

	if relPath == RootPath || relPath == "" {
		clauses = append(clauses, "1 = 1")
	} else {
		clauses = append(clauses, `path LIKE ? ESCAPE '`+likeEscape+`'`)
		args = append(args, escapeLike(relPath)+"/%")
	}

	if opts.EntryType != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, opts.EntryType)
	}

	if opts.Span > 0 {
		clauses = append(clauses, "modify_time >= datetime('now', ?)")
		args = append(args, fmt.Sprintf("-%d days", opts.Span))
	}

	for _, ignored := range opts.IgnoredPaths {
		ignored = strings.Trim(strings.TrimSpace(ignored), "/")
		if ignored == "" {
			continue
		}
		clauses = append(clauses, `path <> ? AND path NOT LIKE ? ESCAPE '`+likeEscape+`'`)
		args = append(args, ignored, escapeLike(ignored)+"/%")
	}

	return strings.Join(clauses, " AND "), args
}

func descendantOrder(order string) string {
	switch order {
	case "name":
		return " ORDER BY name"
	case "-name":
		return " ORDER BY name DESC"
	case "size":
		return " ORDER BY size"
	case "-size":
		return " ORDER BY size DESC"
	case "mtime":
		return " ORDER BY modify_time"
	case "-mtime":
		return " ORDER BY modify_time DESC"
	default:
		return " ORDER BY path"
	}
}
