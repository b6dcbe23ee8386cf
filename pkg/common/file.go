package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ReadFile reads the content of the file at the given path.
func ReadFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			logrus.Errorf("[File] Failed to close file %s: %v", path, cerr)
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	logrus.Debugf("[File] Read file %s", path)
	return content, nil
}

// WriteFile writes data to path, creating parent directories as needed.
func WriteFile(path string, data []byte) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("failed to create directories for %s: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			logrus.Errorf("[File] Failed to close file %s: %v", path, cerr)
		}
	}()

	if _, err = file.Write(data); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	logrus.Debugf("[File] Wrote %d bytes to %s", len(data), path)
	return nil
}

// DeletePath removes a file or a directory tree. A missing path is not an error.
func DeletePath(path string) error {
	if !FileExists(path) {
		return nil
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	logrus.Debugf("[File] Deleted %s", path)
	return nil
}

// FileExists reports whether a file exists at path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		logrus.Errorf("[File] Failed to stat %s: %v", path, err)
	}
	return false
}
