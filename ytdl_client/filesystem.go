package ytdl_client

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileWriteError reports a failed step while saving a fetched file.
type FileWriteError struct {
	Op  string
	Err error
}

func (e FileWriteError) Error() string {
	return fmt.Sprintf("file write error during %s: %v", e.Op, e.Err)
}

func (e FileWriteError) Unwrap() error {
	return e.Err
}

// FileSystemOperations abstracts the file system for Fetch so tests can
// observe or fail writes.
type FileSystemOperations interface {
	// CreateFile streams r into filename, creating parent directories with
	// dirPerm. The file only appears under its final name once fully written.
	CreateFile(filename string, r io.Reader, dirPerm os.FileMode, filePerm os.FileMode) (int64, error)
	// Exists reports whether a file is present at path.
	Exists(path string) (bool, error)
}

// DefaultFileSystem implements FileSystemOperations using the os package.
type DefaultFileSystem struct{}

func (fs *DefaultFileSystem) CreateFile(filename string, r io.Reader, dirPerm os.FileMode, filePerm os.FileMode) (int64, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return 0, FileWriteError{Op: fmt.Sprintf("MkdirAll for %s", dir), Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*.part")
	if err != nil {
		return 0, FileWriteError{Op: fmt.Sprintf("CreateTemp in %s", dir), Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return n, FileWriteError{Op: fmt.Sprintf("Copy to %s", filename), Err: err}
	}
	if err := tmp.Chmod(filePerm); err != nil {
		return n, FileWriteError{Op: fmt.Sprintf("Chmod for %s", filename), Err: err}
	}
	if err := tmp.Close(); err != nil {
		return n, FileWriteError{Op: fmt.Sprintf("Close for %s", filename), Err: err}
	}
	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		committed = true
		return n, FileWriteError{Op: fmt.Sprintf("Rename to %s", filename), Err: err}
	}
	committed = true
	return n, nil
}

func (fs *DefaultFileSystem) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
