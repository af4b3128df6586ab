package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local writes files under a root directory.
type Local struct {
	root string
}

// NewLocal resolves root against the working directory.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, fmt.Errorf("archive/local: root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("archive/local: %w", err)
	}
	return &Local{root: abs}, nil
}

// path keeps keys inside root.
func (d *Local) path(key string) (string, error) {
	full := filepath.Join(d.root, filepath.FromSlash(key))
	if full != d.root && !strings.HasPrefix(full, d.root+string(filepath.Separator)) {
		return "", fmt.Errorf("archive/local: key %q escapes root", key)
	}
	return full, nil
}

func (d *Local) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("archive/local: mkdir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("archive/local: put %s: %w", key, err)
	}
	return nil
}

func (d *Local) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := d.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("archive/local: get %s: %w", key, err)
	}
	return data, nil
}
