package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeName_ControlChars(t *testing.T) {
	got := SanitizeName(" A\nB\rC\tD\x00 ", 100)
	if strings.ContainsAny(got, "\n\r\t\x00") {
		t.Fatalf("sanitize output contains control chars: %q", got)
	}
	if got != "ABCD" {
		t.Fatalf("SanitizeName control char behavior mismatch, got %q", got)
	}
}

func TestSanitizeName_MaxLength(t *testing.T) {
	got := SanitizeName("abcdefghijklmnopqrstuvwxyz", 10)
	if len([]rune(got)) != 10 {
		t.Fatalf("expected length 10, got %d (%q)", len([]rune(got)), got)
	}
}

func TestSanitizeName_AllowedChars(t *testing.T) {
	input := "Az09 -_.,()"
	got := SanitizeName(input, 100)
	if got != input {
		t.Fatalf("SanitizeName changed allowed chars: got %q want %q", got, input)
	}
}

func TestSanitizeName_ReplacesDisallowed(t *testing.T) {
	got := SanitizeName("bad<>|\"name", 100)
	if got != "bad____name" {
		t.Fatalf("SanitizeName disallowed replacement mismatch: got %q", got)
	}
}

func TestValidateDownloadDir_Valid(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateDownloadDir(dir); err != nil {
		t.Fatalf("ValidateDownloadDir(%q) error = %v, want nil", dir, err)
	}
}

func TestValidateDownloadDir_NotExist(t *testing.T) {
	base := t.TempDir()
	missing := filepath.Join(base, "missing")
	if err := ValidateDownloadDir(missing); !errors.Is(err, ErrInvalidDownloadDir) {
		t.Fatalf("ValidateDownloadDir(%q) error = %v, want ErrInvalidDownloadDir", missing, err)
	}
}

func TestValidateDownloadDir_PathTraversal(t *testing.T) {
	path := "/tmp/../etc"
	if err := ValidateDownloadDir(path); err == nil {
		t.Fatalf("ValidateDownloadDir(%q) expected traversal error", path)
	}
}

func TestValidateDownloadDir_NotADir(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "file.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	if err := ValidateDownloadDir(filePath); err == nil {
		t.Fatalf("ValidateDownloadDir(%q) expected non-directory error", filePath)
	}
}

func TestValidateDownloadDir_Empty(t *testing.T) {
	if err := ValidateDownloadDir("  "); !errors.Is(err, ErrInvalidDownloadDir) {
		t.Fatalf("ValidateDownloadDir(blank) error = %v", err)
	}
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"match_edited.mp4", "match_edited.mp4"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\clip.mp4`, "clip.mp4"},
		{".hidden.mp4", "hidden.mp4"},
		{"..", ""},
		{"<>|", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SafeFilename(tt.in); got != tt.want {
			t.Errorf("SafeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlaceFile_DoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	tmp := filepath.Join(dir, "x.part")
	if err := os.WriteFile(tmp, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := placeFile(tmp, dir, "clip.mp4")
	if err != nil {
		t.Fatalf("placeFile() error = %v", err)
	}
	if got != filepath.Join(dir, "clip (1).mp4") {
		t.Fatalf("placeFile() = %q", got)
	}
	if b, _ := os.ReadFile(existing); string(b) != "old" {
		t.Fatalf("existing file overwritten: %q", b)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatal("temporary file left behind")
	}
}
