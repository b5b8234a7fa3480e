package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"number-stock-alerts/internal/marketplace"
)

// FileStore keeps the notification state as a small JSON document.
type FileStore struct {
	path string
}

// NewFileStore builds a file-backed state store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the state file. A missing file yields the zero state; a corrupt
// file yields the zero state together with the parse error so the caller can
// log it and carry on.
func (s *FileStore) Load(ctx context.Context) (NotificationState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NotificationState{}, nil
		}
		return NotificationState{}, fmt.Errorf("read state file: %w", err)
	}

	var st NotificationState
	if err := json.Unmarshal(data, &st); err != nil {
		return NotificationState{}, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	return st, nil
}

// Save atomically overwrites the state file via a temp file and rename.
func (s *FileStore) Save(ctx context.Context, st NotificationState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return writeAtomic(s.path, data)
}

// FilePurchaseLog keeps purchases as a flat JSON array, append-only.
type FilePurchaseLog struct {
	path string
}

// NewFilePurchaseLog builds a file-backed purchase log.
func NewFilePurchaseLog(path string) *FilePurchaseLog {
	return &FilePurchaseLog{path: path}
}

// Append extends the log with new records. Existing entries are never
// modified; an unreadable existing file is an error rather than silently
// starting over.
func (l *FilePurchaseLog) Append(ctx context.Context, records []marketplace.PurchaseRecord) error {
	if len(records) == 0 {
		return nil
	}

	all, err := l.readAll()
	if err != nil {
		return err
	}
	all = append(all, records...)

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal purchase log: %w", err)
	}
	return writeAtomic(l.path, data)
}

// ListRecent returns up to limit records, newest first.
func (l *FilePurchaseLog) ListRecent(ctx context.Context, limit int) ([]marketplace.PurchaseRecord, error) {
	all, err := l.readAll()
	if err != nil {
		return nil, err
	}

	out := make([]marketplace.PurchaseRecord, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (l *FilePurchaseLog) readAll() ([]marketplace.PurchaseRecord, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read purchase log: %w", err)
	}

	var all []marketplace.PurchaseRecord
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse purchase log %s: %w", l.path, err)
	}
	return all, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
var _ PurchaseLog = (*FilePurchaseLog)(nil)
