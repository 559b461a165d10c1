// Package fsindex persists the filesystem index in SQLite and exposes the
// queries the daemon and control server run against it.
//
// One row per managed file or directory, keyed by index-relative path;
// parent_id links children to their directory so listings avoid path prefix
// scans. A second table holds the change-event feed drained through
// GetChanges/ConfirmChanges on the control socket.
//
// The database is a cache of the managed trees, not a source of truth: it can
// be deleted at any time and is rebuilt by the next refresh. Schema changes
// bump schemaVersion in schema.go.
package fsindex
