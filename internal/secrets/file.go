package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider reads secrets mounted as one file per key, the layout used by
// Cloud Run and Kubernetes secret volumes.
type FileProvider struct {
	dir string
}

func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

func (*FileProvider) Name() string { return "file" }

func (p *FileProvider) Lookup(_ context.Context, key string) (string, bool, error) {
	if key == "" || key != filepath.Base(key) {
		return "", false, fmt.Errorf("invalid secret key %q", key)
	}
	data, err := os.ReadFile(filepath.Join(p.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read secret file: %w", err)
	}
	value := strings.TrimSpace(string(data))
	return value, value != "", nil
}
