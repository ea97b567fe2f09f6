package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

const maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics

// Prober reads the duration of a local video in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFprobe shells out to ffprobe.
type FFprobe struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFprobe resolves the ffprobe binary. preferred may be empty to search
// PATH.
func NewFFprobe(preferred string, logger *slog.Logger) (*FFprobe, error) {
	binary, err := resolveBinary(preferred, "ffprobe")
	if err != nil {
		return nil, err
	}
	return &FFprobe{binary: binary, timeout: 30 * time.Second, logger: logger}, nil
}

func (f *FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var stdout, stderrBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	start := time.Now()
	if err := cmd.Run(); err != nil {
		f.logger.Warn("ffprobe failed",
			"duration_ms", time.Since(start).Milliseconds(),
			"stderr_tail", truncate(stderrBuf.String(), 512),
		)
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbeDuration(stdout.Bytes())
}

func parseProbeDuration(data []byte) (float64, error) {
	var out struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}
	d, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("ffprobe reported no usable duration: %q", out.Format.Duration)
	}
	return d, nil
}

// StubProber is used when ffprobe is not installed. It reports an unknown
// duration, which the player fills in later.
type StubProber struct{}

func (StubProber) Duration(ctx context.Context, path string) (float64, error) {
	return 0, nil
}

func resolveBinary(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("no %s binary found on PATH", name)
	}
	return p, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
