package delivery

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/reportvault/internal/filex"
)

// DirArchive stores deliveries as files below a local directory. It is
// meant for single-node deployments without object storage.
type DirArchive struct {
	root string
}

func NewDirArchive(root string) (*DirArchive, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &DirArchive{root: abs}, nil
}

func (a *DirArchive) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(a.root, filepath.FromSlash(key))
	if !strings.HasPrefix(path, a.root+string(filepath.Separator)) {
		return fmt.Errorf("archive put: key %q escapes archive root", key)
	}
	if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("archive put: %w", err)
	}
	if err := filex.WriteFileAtomic(path, data, 0o640); err != nil {
		return fmt.Errorf("archive put: %w", err)
	}
	return nil
}
