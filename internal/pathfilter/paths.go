package pathfilter

import (
	"errors"
	"path/filepath"
	"strings"
)

// PathLengthLimit is the longest absolute destination path, in bytes, that
// transfer operations accept.
const PathLengthLimit = 32767

// ErrInvalidPath indicates a path that is empty or escapes its base path.
var ErrInvalidPath = errors.New("invalid path")

// CleanRelative validates a caller-supplied path against base and returns it
// relative to base. Leading and trailing separators are stripped; paths that
// resolve outside base are rejected.
func CleanRelative(base, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrInvalidPath
	}
	path = strings.Trim(path, "/")
	full := filepath.Join(base, path)
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	rel, err := filepath.Rel(base, full)
	if err != nil {
		return "", ErrInvalidPath
	}
	return rel, nil
}

// CleanExternal validates a path that lives outside the managed roots and
// returns its absolute form.
func CleanExternal(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrInvalidPath
	}
	path = strings.TrimRight(path, "/")
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return abs, nil
}
