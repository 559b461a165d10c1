// Package indexer reconciles the index database with the managed base
// paths. It walks directory trees with a bounded worker pool, prunes rows
// for vanished or blacklisted files, and carries out the disk-mutating
// operations (remove, transfer, consolidate) while keeping the index in
// step.
package indexer
