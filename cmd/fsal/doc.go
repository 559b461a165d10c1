// Package main hosts the fsal CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC
// calls against the daemon: index queries, searches, removals, transfers,
// change-feed draining, whitelist updates, and bundle imports. It
// centralizes configuration resolution and socket discovery so subcommands
// can focus on user experience instead of wiring.
package main
