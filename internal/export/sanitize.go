package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var ErrInvalidDownloadDir = errors.New("invalid download directory")

// maxFilenameLen bounds server-suggested names, in runes.
const maxFilenameLen = 200

// SanitizeName drops control characters, replaces anything outside a small
// safe set with '_' and truncates to maxLen runes when maxLen > 0.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// SafeFilename reduces a suggested name to a plain file name inside the
// download directory. It returns "" when nothing usable is left.
func SafeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimLeft(SanitizeName(name, maxFilenameLen), ".")
	if strings.Trim(name, "_ ") == "" {
		return ""
	}
	return name
}

// ValidateDownloadDir checks that dir is a clean, existing directory.
func ValidateDownloadDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: not configured", ErrInvalidDownloadDir)
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("%w: path traversal", ErrInvalidDownloadDir)
		}
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("%w: path must be clean", ErrInvalidDownloadDir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist", ErrInvalidDownloadDir, dir)
		}
		return fmt.Errorf("%w: %w", ErrInvalidDownloadDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidDownloadDir, dir)
	}
	return nil
}

// placeFile moves tmp to dir/name without overwriting an existing file.
// Taken names get a " (n)" suffix before the extension.
func placeFile(tmp, dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for n := 0; n < 1000; n++ {
		candidate := filepath.Join(dir, name)
		if n > 0 {
			candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		}

		err := os.Link(tmp, candidate)
		if err == nil {
			os.Remove(tmp)
			return candidate, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		// Hard links are not available everywhere; fall back to a checked rename.
		if _, statErr := os.Lstat(candidate); statErr == nil {
			continue
		}
		if err := os.Rename(tmp, candidate); err != nil {
			return "", fmt.Errorf("move export into place: %w", err)
		}
		return candidate, nil
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}
