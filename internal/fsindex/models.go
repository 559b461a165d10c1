package fsindex

import (
	"path"
	"time"
)

// EntryType distinguishes files from directories in the index.
type EntryType string

const (
	TypeFile EntryType = "file"
	TypeDir  EntryType = "dir"
)

// RootPath is the index-relative path of the virtual root directory.
const RootPath = "."

// RootID is the parent identifier of top-level entries.
const RootID = 0

// Entry represents one indexed file or directory.
type Entry struct {
	ID       int64
	ParentID int64
	Type     EntryType
	Name     string
	Path     string
	BasePath string
	Size     int64
	ModTime  time.Time
	Checksum string
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return e != nil && e.Type == TypeDir
}

// AbsPath returns the entry's location on disk.
func (e *Entry) AbsPath() string {
	if e == nil {
		return ""
	}
	if e.Path == RootPath {
		return e.BasePath
	}
	return path.Join(e.BasePath, e.Path)
}

// EventType classifies a change event.
type EventType string

const (
	EventCreated  EventType = "created"
	EventModified EventType = "modified"
	EventRemoved  EventType = "removed"
)

// Event records a change to the index for consumers draining the change feed.
type Event struct {
	ID         int64
	Type       EventType
	Path       string
	IsDir      bool
	RecordedAt time.Time
}

// Stats aggregates index contents for status output.
type Stats struct {
	Files   int
	Dirs    int
	Events  int
	Pending int
}

// DatabaseHealth captures diagnostic information about the index database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalEntries     int
	Error            string
}

// DescendantOptions controls ListDescendants paging and filtering.
type DescendantOptions struct {
	// CountOnly skips row materialization and returns only the total.
	CountOnly bool
	Offset    int
	Limit     int
	// Order is one of "name", "-name", "size", "-size", "mtime", "-mtime".
	Order string
	// Span restricts results to entries modified within the given number of days.
	Span int
	// EntryType restricts results to files or directories when set.
	EntryType EntryType
	// IgnoredPaths excludes exact relative paths and their subtrees.
	IgnoredPaths []string
}
