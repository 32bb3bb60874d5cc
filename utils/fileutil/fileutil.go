package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// MaxFileSize is the default maximum size of a response file (20MB)
	MaxFileSize = 20 * 1024 * 1024
)

// ErrTooLarge is returned when content exceeds the allowed size
var ErrTooLarge = errors.New("content exceeds maximum allowed size")

// CheckFileSize verifies that the file at path is at most limit bytes
func CheckFileSize(path string, limit int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking file size: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > limit {
		return fmt.Errorf("%w: file size %d bytes exceeds %d bytes", ErrTooLarge, info.Size(), limit)
	}
	return nil
}

// SafeReadFile reads a file after checking it against MaxFileSize
func SafeReadFile(path string) ([]byte, error) {
	if err := CheckFileSize(path, MaxFileSize); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return data, nil
}

// ReadLimited reads r up to limit bytes and fails if more remain, so
// uploaded bodies are bounded the same way files are
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("error reading content: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
