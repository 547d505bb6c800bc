package syncer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LoadQueue reads the JSON queue file. A missing file is an empty queue.
func LoadQueue(path string) ([]PendingRating, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read queue: %w", err)
	}
	if len(payload) == 0 {
		return nil, nil
	}
	var items []PendingRating
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("decode queue %s: %w", path, err)
	}
	return items, nil
}

// SaveQueue writes items to path through a temp file and rename.
func SaveQueue(path string, items []PendingRating) error {
	if items == nil {
		items = []PendingRating{}
	}
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp queue: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp queue: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace queue: %w", err)
	}
	return nil
}
