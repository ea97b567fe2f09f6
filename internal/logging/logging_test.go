package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(New(&buf, "info", "json"), "pipeline")
	logger.Debug("hidden")
	logger.Info("ingestion finished", "file_id", "match.mp4")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not a single JSON record: %q", buf.String())
	}
	if rec["component"] != "pipeline" || rec["file_id"] != "match.mp4" {
		t.Fatalf("record = %v", rec)
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "text").Debug("probe", "path", "x.mp4")
	if !strings.Contains(buf.String(), "msg=probe") {
		t.Fatalf("text output = %q", buf.String())
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %q", got)
	}
	if got := SanitizeToken("abcd1234efgh5678"); got != "abcd...5678" {
		t.Errorf("SanitizeToken() = %q", got)
	}
}

func TestSanitizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("no home directory")
	}
	if got := SanitizePath(filepath.Join(home, "videos", "match.mp4")); !strings.HasPrefix(got, "~") {
		t.Errorf("SanitizePath() = %q", got)
	}
}
