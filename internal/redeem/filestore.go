package redeem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileStore persists the ledger as a JSON array at a fixed path. Saves are
// atomic: the records are written to a temp file in the same directory and
// renamed over the target.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore creates a file-backed store. The file does not need to exist.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Load reads the ledger file permissively: a missing file is an empty
// ledger, and a malformed file logs and behaves as empty rather than
// refusing to start.
func (s *FileStore) Load(_ context.Context) ([]BetRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger file: %w", err)
	}

	var records []BetRecord
	if err = json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("ledger-file-malformed-starting-empty",
			zap.String("path", s.path),
			zap.Error(err))
		return nil, nil
	}

	return records, nil
}

// Save atomically replaces the ledger file.
func (s *FileStore) Save(_ context.Context, records []BetRecord) error {
	if records == nil {
		records = []BetRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err = os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// Close is a no-op for file-backed storage.
func (s *FileStore) Close() error {
	return nil
}
