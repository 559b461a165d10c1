package logging

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

// RotatingWriter appends to a log file and rotates it once it grows past
// maxSize bytes. Rotated files are renamed path.1 .. path.N with .1 the most
// recent; the oldest backup is dropped when the count exceeds backups.
type RotatingWriter struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	backups int
	file    *os.File
	size    int64
}

// NewRotatingWriter opens (or creates) the log file at path. A maxSize of 0
// disables rotation.
func NewRotatingWriter(path string, maxSize int64, backups int) (*RotatingWriter, error) {
	w := &RotatingWriter{path: path, maxSize: maxSize, backups: backups}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", w.path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file %s: %w", w.path, err)
	}
	w.file = file
	w.size = info.Size()
	return nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxSize > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the current log file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close log file for rotation: %w", err)
	}

	if w.backups <= 0 {
		if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("truncate log file: %w", err)
		}
		return w.open()
	}

	oldest := w.backupPath(w.backups)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove oldest backup: %w", err)
	}
	for i := w.backups - 1; i >= 1; i-- {
		src := w.backupPath(i)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, w.backupPath(i+1)); err != nil {
			return fmt.Errorf("shift backup %s: %w", src, err)
		}
	}
	if err := os.Rename(w.path, w.backupPath(1)); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	return w.open()
}

func (w *RotatingWriter) backupPath(n int) string {
	return w.path + "." + strconv.Itoa(n)
}
