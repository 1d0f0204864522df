package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/oshokin/shippedbrain/internal/logger"
)

// ArchiveExtension is appended to the generated archive name.
const ArchiveExtension = ".zip"

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// errUnsafeArchiveEntry is returned for entries that would land outside the target directory.
var errUnsafeArchiveEntry = errors.New("archive entry escapes target directory")

// Zip compresses the contents of srcDir (not the directory itself) into
// srcDir/<uuid>.zip and returns the archive path.
func Zip(srcDir string) (string, error) {
	archivePath := filepath.Join(srcDir, uuid.NewString()+ArchiveExtension)

	out, err := os.OpenFile(archivePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePermissions)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}

	writer := zip.NewWriter(out)

	walkErr := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if p == srcDir || p == archivePath {
			return nil
		}

		return addToArchive(writer, srcDir, p, d)
	})

	closeErr := writer.Close()
	fileErr := out.Close()

	if err = errors.Join(walkErr, closeErr, fileErr); err != nil {
		_ = os.Remove(archivePath)
		return "", fmt.Errorf("write archive: %w", err)
	}

	return archivePath, nil
}

func addToArchive(writer *zip.Writer, srcDir, p string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	if !info.IsDir() && !info.Mode().IsRegular() {
		return nil
	}

	rel, err := filepath.Rel(srcDir, p)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = filepath.ToSlash(rel)

	if info.IsDir() {
		header.Name += "/"
		_, err = writer.CreateHeader(header)

		return err
	}

	header.Method = zip.Deflate

	entry, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}

	in, err := os.Open(filepath.Clean(p))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	if _, err = io.Copy(entry, in); err != nil {
		return fmt.Errorf("compress %s: %w", rel, err)
	}

	return nil
}

// Unzip extracts archivePath into targetDir. A copy of the archive left in
// targetDir under its own name is removed afterwards; failing to do so only
// logs a warning.
func Unzip(ctx context.Context, archivePath, targetDir string) error {
	if err := os.MkdirAll(targetDir, dirPermissions); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	root, err := filepath.Abs(targetDir)
	if err != nil {
		return err
	}

	if err = extractAll(archivePath, root); err != nil {
		return err
	}

	residual := filepath.Join(root, filepath.Base(archivePath))
	if err = os.Remove(residual); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.WarnKV(ctx, "Could not remove residual archive", "path", residual, "error", err)
	}

	logger.InfoKV(ctx, "Archive unpacked", "archive", archivePath, "target", targetDir)

	return nil
}

func extractAll(archivePath, root string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	for _, f := range reader.File {
		if err = extract(f, root); err != nil {
			return err
		}
	}

	return nil
}

func extract(f *zip.File, root string) error {
	target := filepath.Join(root, filepath.FromSlash(f.Name))
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return fmt.Errorf("%q: %w", f.Name, errUnsafeArchiveEntry)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, dirPermissions)
	}

	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return err
	}

	//nolint:gosec // Archives are produced by this tool from local model artifacts.
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}

	return out.Close()
}
