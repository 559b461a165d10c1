package ipc

import (
	"time"

	"fsal/internal/fsindex"
)

// Entry is the wire representation of an indexed filesystem node.
type Entry struct {
	ID       int64     `json:"id"`
	ParentID int64     `json:"parent_id"`
	Type     string    `json:"type"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	BasePath string    `json:"base_path"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modify_time"`
	Checksum string    `json:"checksum,omitempty"`
}

// Event is the wire representation of an index change event.
type Event struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	Path       string    `json:"path"`
	IsDir      bool      `json:"is_dir"`
	RecordedAt time.Time `json:"recorded_at"`
}

func fromEntry(entry *fsindex.Entry) Entry {
	return Entry{
		ID:       entry.ID,
		ParentID: entry.ParentID,
		Type:     string(entry.Type),
		Name:     entry.Name,
		Path:     entry.Path,
		BasePath: entry.BasePath,
		Size:     entry.Size,
		ModTime:  entry.ModTime,
		Checksum: entry.Checksum,
	}
}

func fromEntries(entries []*fsindex.Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		out = append(out, fromEntry(entry))
	}
	return out
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/index status information.
type StatusResponse struct {
	Running       bool     `json:"running"`
	PID           int      `json:"pid"`
	BasePaths     []string `json:"base_paths"`
	SocketPath    string   `json:"socket_path"`
	DBPath        string   `json:"db_path"`
	LockPath      string   `json:"lock_path"`
	Files         int      `json:"files"`
	Dirs          int      `json:"dirs"`
	PendingEvents int      `json:"pending_events"`
}

// ListBasePathsRequest fetches the managed root directories.
type ListBasePathsRequest struct{}

// ListBasePathsResponse contains the managed root directories.
type ListBasePathsResponse struct {
	BasePaths []string `json:"base_paths"`
}

// ListDirRequest lists the direct children of an indexed directory.
type ListDirRequest struct {
	Path string `json:"path"`
}

// ListDirResponse contains directory children, directories first.
type ListDirResponse struct {
	Entries []Entry `json:"entries"`
}

// ListDescendantsRequest pages through a subtree.
type ListDescendantsRequest struct {
	Path         string   `json:"path"`
	CountOnly    bool     `json:"count_only"`
	Offset       int      `json:"offset"`
	Limit        int      `json:"limit"`
	Order        string   `json:"order"`
	Span         int      `json:"span"`
	EntryType    string   `json:"entry_type"`
	IgnoredPaths []string `json:"ignored_paths"`
}

// ListDescendantsResponse contains the subtree page and total count.
type ListDescendantsResponse struct {
	Count   int     `json:"count"`
	Entries []Entry `json:"entries"`
}

// SearchRequest looks up entries by name.
type SearchRequest struct {
	Query           string   `json:"query"`
	WholeWords      bool     `json:"whole_words"`
	ExcludePatterns []string `json:"exclude_patterns"`
}

// SearchResponse contains matches. IsMatch is true when the query named an
// indexed directory and Entries holds its listing.
type SearchResponse struct {
	IsMatch bool    `json:"is_match"`
	Entries []Entry `json:"entries"`
}

// FilterPathsRequest reduces candidate paths to the indexed subset.
type FilterPathsRequest struct {
	Paths []string `json:"paths"`
}

// FilterPathsResponse contains the entries for indexed candidates.
type FilterPathsResponse struct {
	Entries []Entry `json:"entries"`
}

// ExistsRequest checks whether a path is indexed.
type ExistsRequest struct {
	Path string `json:"path"`
}

// ExistsResponse reports index membership.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

// IsDirRequest checks whether a path is an indexed directory.
type IsDirRequest struct {
	Path string `json:"path"`
}

// IsDirResponse reports the check result.
type IsDirResponse struct {
	IsDir bool `json:"is_dir"`
}

// IsFileRequest checks whether a path is an indexed file.
type IsFileRequest struct {
	Path string `json:"path"`
}

// IsFileResponse reports the check result.
type IsFileResponse struct {
	IsFile bool `json:"is_file"`
}

// GetEntryRequest fetches a single entry by path.
type GetEntryRequest struct {
	Path string `json:"path"`
}

// GetEntryResponse contains the entry.
type GetEntryResponse struct {
	Entry Entry `json:"entry"`
}

// PathSizeRequest sums the size of a subtree.
type PathSizeRequest struct {
	Path string `json:"path"`
}

// PathSizeResponse reports the subtree size in bytes.
type PathSizeResponse struct {
	Size int64 `json:"size"`
}

// RemoveRequest deletes a managed path from disk and index.
type RemoveRequest struct {
	Path string `json:"path"`
}

// RemoveResponse reports deletion.
type RemoveResponse struct {
	Removed bool `json:"removed"`
}

// TransferRequest moves an external path under the primary base path.
type TransferRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// TransferResponse reports the indexed destination path.
type TransferResponse struct {
	Path string `json:"path"`
}

// ConsolidateRequest moves indexed subtrees into a destination directory.
type ConsolidateRequest struct {
	Sources     []string `json:"sources"`
	Destination string   `json:"destination"`
}

// ConsolidateResponse reports which sources moved. Message carries failure
// detail when only part of the set succeeded.
type ConsolidateResponse struct {
	Moved   []string `json:"moved"`
	Message string   `json:"message"`
}

// RefreshRequest triggers a full index refresh.
type RefreshRequest struct{}

// RefreshResponse acknowledges the refresh.
type RefreshResponse struct{}

// RefreshPathRequest reindexes one subtree.
type RefreshPathRequest struct {
	Path string `json:"path"`
}

// RefreshPathResponse acknowledges the refresh.
type RefreshPathResponse struct{}

// GetChangesRequest drains pending change events.
type GetChangesRequest struct {
	Limit int `json:"limit"`
}

// GetChangesResponse contains change events, oldest first.
type GetChangesResponse struct {
	Events []Event `json:"events"`
}

// ConfirmChangesRequest acknowledges consumed change events.
type ConfirmChangesRequest struct {
	Count int `json:"count"`
}

// ConfirmChangesResponse reports how many events were dropped.
type ConfirmChangesResponse struct {
	Confirmed int64 `json:"confirmed"`
}

// SetWhitelistRequest replaces the runtime blacklist-bypass prefixes.
type SetWhitelistRequest struct {
	Paths []string `json:"paths"`
}

// SetWhitelistResponse acknowledges the update.
type SetWhitelistResponse struct{}

// ImportBundleRequest extracts and indexes a content bundle.
type ImportBundleRequest struct {
	Path string `json:"path"`
}

// ImportBundleResponse lists the extracted files.
type ImportBundleResponse struct {
	Files []string `json:"files"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalEntries     int      `json:"total_entries"`
	Error            string   `json:"error"`
}
