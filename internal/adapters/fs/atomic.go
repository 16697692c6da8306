package fs

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// writeJSONAtomic writes v as indented JSON via a temp file and rename so a
// crash never leaves a half-written file behind.
func writeJSONAtomic(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
