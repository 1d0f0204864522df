package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// LocalRepository serves artifacts stored in a local directory.
type LocalRepository struct {
	// root is the artifact root directory.
	root string
}

// NewLocalRepository creates a repository rooted at dir.
func NewLocalRepository(dir string) *LocalRepository {
	return &LocalRepository{
		root: filepath.Clean(dir),
	}
}

// Root returns the artifact root directory.
func (r *LocalRepository) Root() string {
	return r.root
}

// Download copies root/artifactPath into dst/artifactPath.
func (r *LocalRepository) Download(ctx context.Context, artifactPath, dst string) (string, error) {
	rel, err := cleanArtifactPath(artifactPath)
	if err != nil {
		return "", err
	}

	src := filepath.Join(r.root, filepath.FromSlash(rel))
	target := filepath.Join(dst, filepath.FromSlash(rel))

	if _, err = os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", src, ErrNotFound)
	} else if err != nil {
		return "", fmt.Errorf("stat %s: %w", src, err)
	}

	if err = CopyTree(ctx, src, target); err != nil {
		return "", err
	}

	return target, nil
}

// Upload copies the contents of srcDir into root/artifactPath.
func (r *LocalRepository) Upload(ctx context.Context, srcDir, artifactPath string) error {
	rel, err := cleanArtifactPath(artifactPath)
	if err != nil {
		return err
	}

	return CopyTree(ctx, srcDir, filepath.Join(r.root, filepath.FromSlash(rel)))
}

// CopyTree copies a file or a directory tree from src to dst, creating parents as needed.
func CopyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, dirPermissions)
		}

		if !d.Type().IsRegular() {
			return nil
		}

		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	if err = os.MkdirAll(filepath.Dir(dst), dirPermissions); err != nil {
		return err
	}

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}

	return out.Close()
}
