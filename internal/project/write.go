package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteConfig stores cfg as dir/iotz.json. The file is written to a temp
// path and renamed so a reader never sees a partial config.
func WriteConfig(dir string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", FileName, err)
	}
	data = append(data, '\n')
	return WriteFileAtomic(filepath.Join(dir, FileName), data, 0644)
}

// WriteFileAtomic writes data next to path and renames it into place.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
