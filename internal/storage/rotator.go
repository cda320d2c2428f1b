package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"draft-analyzer/internal/logging"
	"draft-analyzer/internal/model"
)

const (
	// Rotation triggers
	MaxMatchesPerFile = 1000
	MaxFileAge        = 1 * time.Hour
)

// FileRotator writes ingested matches to rotating JSONL files, one match
// per line. Files move hot -> warm on rotation; the reducer replays warm
// files and compresses them to cold.
type FileRotator struct {
	mu     sync.Mutex
	logger *slog.Logger

	// Directories
	hotDir  string // Active writes
	warmDir string // Closed files awaiting processing
	coldDir string // Compressed archives

	// Current file state
	currentFile   *os.File
	currentWriter *bufio.Writer
	currentPath   string
	matchCount    int
	fileOpenedAt  time.Time
	seq           int
}

// NewFileRotator creates a new rotator with the given base directory
func NewFileRotator(baseDir string, logger *slog.Logger) (*FileRotator, error) {
	r := &FileRotator{
		hotDir:  filepath.Join(baseDir, "hot"),
		warmDir: filepath.Join(baseDir, "warm"),
		coldDir: filepath.Join(baseDir, "cold"),
		logger:  logging.OrDiscard(logger).With("component", "rotator"),
	}

	for _, dir := range []string{r.hotDir, r.warmDir, r.coldDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := r.rotate(); err != nil {
		return nil, err
	}
	return r, nil
}

// SetColdDir allows setting a different cold storage path (e.g., HDD)
func (r *FileRotator) SetColdDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create cold directory: %w", err)
	}
	r.mu.Lock()
	r.coldDir = path
	r.mu.Unlock()
	return nil
}

// WarmDir is where rotated files wait for the reducer.
func (r *FileRotator) WarmDir() string { return r.warmDir }

// ColdDir is where processed files are archived.
func (r *FileRotator) ColdDir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coldDir
}

// WriteMatch appends one match to the current file, flushes, and rotates
// if the file is full or old enough.
func (r *FileRotator) WriteMatch(m *model.Match) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal match %s: %w", m.MatchID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil {
		return fmt.Errorf("rotator is closed")
	}
	if _, err := r.currentWriter.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write match %s: %w", m.MatchID, err)
	}
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	r.matchCount++

	if r.shouldRotate() {
		return r.rotate()
	}
	return nil
}

// Rotate moves the current file to warm storage if it holds any matches.
func (r *FileRotator) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil || r.matchCount == 0 {
		return nil
	}
	return r.rotate()
}

// shouldRotate checks if we need to rotate to a new file
func (r *FileRotator) shouldRotate() bool {
	if r.matchCount >= MaxMatchesPerFile {
		return true
	}
	return time.Since(r.fileOpenedAt) >= MaxFileAge
}

// rotate closes the current file and opens a new one. Callers hold mu
// (or own r exclusively, as in NewFileRotator).
func (r *FileRotator) rotate() error {
	if r.currentFile != nil {
		if err := r.closeCurrent(); err != nil {
			return err
		}
	}

	// The sequence number keeps names unique within one second.
	r.seq++
	filename := fmt.Sprintf("raw_matches_%s_%04d.jsonl", time.Now().Format("2006-01-02_15-04-05"), r.seq)
	r.currentPath = filepath.Join(r.hotDir, filename)

	file, err := os.Create(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to create new file: %w", err)
	}

	r.currentFile = file
	r.currentWriter = bufio.NewWriterSize(file, 64*1024) // 64KB buffer
	r.matchCount = 0
	r.fileOpenedAt = time.Now()

	r.logger.Debug("opened new file", "file", filename)
	return nil
}

// closeCurrent flushes and closes the current file, moving it to warm
// storage if it has data and removing it otherwise.
func (r *FileRotator) closeCurrent() error {
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush before rotation: %w", err)
	}
	if err := r.currentFile.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	r.currentFile = nil

	if r.matchCount == 0 {
		return os.Remove(r.currentPath)
	}

	warmPath := filepath.Join(r.warmDir, filepath.Base(r.currentPath))
	if err := os.Rename(r.currentPath, warmPath); err != nil {
		return fmt.Errorf("failed to move to warm storage: %w", err)
	}
	r.logger.Info("moved file to warm storage", "file", filepath.Base(warmPath), "matches", r.matchCount)
	return nil
}

// Close flushes and closes the current file
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil {
		return nil
	}
	return r.closeCurrent()
}

// Stats returns current rotator statistics
func (r *FileRotator) Stats() (matchesInCurrentFile int, currentFileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchCount, filepath.Base(r.currentPath)
}
