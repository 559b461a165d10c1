// Package config loads, normalizes, and validates fsald's TOML configuration.
//
// Load resolves the config file (explicit flag path, then
// ~/.config/fsal/fsal.toml, then ./fsal.toml), merges it over Default(),
// expands ~ in every path field, and rejects unusable values before any
// subsystem starts. Blacklist patterns are compiled case-insensitively at
// validation time so a bad pattern fails startup instead of silently skipping
// paths later.
package config
