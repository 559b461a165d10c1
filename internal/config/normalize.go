package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBasePaths()
	c.normalizeBundles()
	c.normalizeLogging()
	c.normalizeIndex()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.FSAL.Socket, err = ExpandPath(c.FSAL.Socket); err != nil {
		return fmt.Errorf("fsal.socket: %w", err)
	}
	if c.Database.Path, err = ExpandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	if c.ONDD.Socket, err = ExpandPath(c.ONDD.Socket); err != nil {
		return fmt.Errorf("ondd.socket: %w", err)
	}
	if c.Database.BusyTimeoutMS <= 0 {
		c.Database.BusyTimeoutMS = defaultBusyTimeoutMS
	}
	return nil
}

func (c *Config) normalizeBasePaths() {
	normalized := make([]string, 0, len(c.FSAL.BasePaths))
	seen := make(map[string]struct{}, len(c.FSAL.BasePaths))
	for _, base := range c.FSAL.BasePaths {
		base = strings.TrimSpace(base)
		if base == "" {
			continue
		}
		expanded, err := ExpandPath(base)
		if err != nil {
			continue
		}
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		normalized = append(normalized, expanded)
	}
	c.FSAL.BasePaths = normalized

	chroot := strings.Trim(strings.TrimSpace(c.FSAL.Chroot), "/")
	c.FSAL.Chroot = filepath.Clean(chroot)
	if c.FSAL.Chroot == "." {
		c.FSAL.Chroot = ""
	}
}

func (c *Config) normalizeBundles() {
	dir := strings.Trim(strings.TrimSpace(c.Bundles.BundlesDir), "/")
	c.Bundles.BundlesDir = filepath.Clean(dir)
	if c.Bundles.BundlesDir == "." {
		c.Bundles.BundlesDir = ""
	}

	exts := make([]string, 0, len(c.Bundles.BundlesExts))
	seen := make(map[string]struct{}, len(c.Bundles.BundlesExts))
	for _, ext := range c.Bundles.BundlesExts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	c.Bundles.BundlesExts = exts
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	output := strings.TrimSpace(c.Logging.Output)
	if output != "" && output != "stdout" && output != "stderr" {
		if expanded, err := ExpandPath(output); err == nil {
			output = expanded
		}
	}
	c.Logging.Output = output
	if c.Logging.MaxSizeMiB <= 0 {
		c.Logging.MaxSizeMiB = defaultLogMaxSizeMiB
	}
	if c.Logging.Backups < 0 {
		c.Logging.Backups = defaultLogBackups
	}
}

func (c *Config) normalizeIndex() {
	if c.Index.WalkWorkers <= 0 {
		c.Index.WalkWorkers = defaultWalkWorkers
	}
	if c.Index.EventBacklog <= 0 {
		c.Index.EventBacklog = defaultEventBacklog
	}
}
