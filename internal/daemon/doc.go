// Package daemon coordinates the long-running fsald process.
//
// It wires configuration, the index store, the indexer, the bundle watcher,
// and the download-notification listener into a single lifecycle with
// flock-based locking to prevent multiple instances.
//
// Keep orchestration logic here: filesystem and index behavior lives in
// their respective packages while the daemon focuses on startup, shutdown,
// and routing notifications.
package daemon
