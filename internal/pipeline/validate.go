package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// MaxFileSize is the largest video accepted for upload.
const MaxFileSize int64 = 10 << 30

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrEmptyFile           = errors.New("file is empty")
)

var videoExtensions = map[string]bool{
	".mp4": true,
	".mkv": true,
}

// ValidateFile checks name and size before any network call.
func ValidateFile(name string, size int64) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !videoExtensions[ext] {
		return fmt.Errorf("%w: %q (accepted: mp4, mkv)", ErrUnsupportedFileType, filepath.Base(name))
	}
	if size > MaxFileSize {
		return fmt.Errorf("%w: %s exceeds the %s limit", ErrFileTooLarge, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(MaxFileSize)))
	}
	if size <= 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, filepath.Base(name))
	}
	return nil
}

// Validate stats path and applies ValidateFile.
func Validate(path string) (os.FileInfo, error) {
	if err := ValidateFile(path, 1); errors.Is(err, ErrUnsupportedFileType) {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat video: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFileType, filepath.Base(path))
	}
	if err := ValidateFile(path, info.Size()); err != nil {
		return nil, err
	}
	return info, nil
}
