package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/veilco/market-creation/internal/domain"
)

// FileTransactionLog persists the tracker's list as one JSON array on disk.
// Every save overwrites the whole file, mirroring how the tracker treats
// its durable storage as a single namespaced value.
type FileTransactionLog struct {
	path string
}

func NewFileTransactionLog(path string) *FileTransactionLog {
	return &FileTransactionLog{path: path}
}

// Save writes the full list atomically via a temp file rename.
func (l *FileTransactionLog) Save(txs []domain.Transaction) error {
	data, err := json.Marshal(txs)
	if err != nil {
		return fmt.Errorf("client: encode transactions: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("client: create log dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".transactions-*")
	if err != nil {
		return fmt.Errorf("client: create temp log: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("client: write temp log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("client: close temp log: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("client: replace log: %w", err)
	}
	return nil
}

// Load reads the list back, returning an empty list when no log exists yet.
func (l *FileTransactionLog) Load() ([]domain.Transaction, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("client: read log: %w", err)
	}

	var txs []domain.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("client: decode log: %w", err)
	}
	return txs, nil
}
