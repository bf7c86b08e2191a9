// Package jsonfile implements a Gateway backend that stores the task tree and
// history in a single JSON document.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"tasktree/backend"
)

// Config holds JSON file backend configuration
type Config struct {
	FilePath string // Path to the JSON document
}

// Backend implements backend.Gateway for JSON file storage
type Backend struct {
	config   Config
	filePath string // Resolved absolute path
}

// document is the on-disk layout
type document struct {
	Tasks   []*backend.TaskRecord   `json:"tasks"`
	History []backend.HistoryRecord `json:"history"`
}

// New creates a new JSON file backend
func New(cfg Config) (*Backend, error) {
	filePath := cfg.FilePath
	if filePath == "" {
		filePath = "tasks.json"
	}

	// Resolve relative paths
	if !filepath.IsAbs(filePath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		filePath = filepath.Join(wd, filePath)
	}

	return &Backend{
		config:   cfg,
		filePath: filePath,
	}, nil
}

// Path returns the resolved file path
func (b *Backend) Path() string {
	return b.filePath
}

// Close closes the backend
func (b *Backend) Close() error {
	return nil
}

// Load reads the document, or returns an empty snapshot if the file does not exist
func (b *Backend) Load(ctx context.Context) (*backend.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.filePath)
	if os.IsNotExist(err) {
		return &backend.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.filePath, err)
	}
	if len(data) == 0 {
		return &backend.Snapshot{}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", b.filePath, err)
	}

	return backend.DecodeSnapshot(doc.Tasks, doc.History)
}

// Save writes the snapshot to a temporary file and renames it into place
func (b *Backend) Save(ctx context.Context, snap *backend.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tasks, hist, err := backend.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(document{Tasks: tasks, History: hist}, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(b.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tasks-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, b.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", b.filePath, err)
	}
	return nil
}

// Verify interface compliance at compile time
var _ backend.Gateway = (*Backend)(nil)
