package playback

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Server streams the loaded video to the UI's media element.
type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ContentType maps a video path to the MIME type media elements expect.
func ContentType(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp4":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}

// ServeVideo writes path to w, honouring a single byte range. Errors are
// returned only when nothing has been written yet.
func (s *Server) ServeVideo(w http.ResponseWriter, r *http.Request, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "video not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat video: %w", err)
	}
	size := stat.Size()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", ContentType(path))

	br, err := ParseByteRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		// Malformed ranges fall back to the whole file.
		br = nil
	}

	if br == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		if _, err := io.Copy(w, file); err != nil {
			s.logger.Debug("video stream ended early", "path", path, "error", err)
		}
		return nil
	}

	if _, err := file.Seek(br.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek video: %w", err)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(br.Len(), 10))
	w.Header().Set("Content-Range", br.Header(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.CopyN(w, file, br.Len()); err != nil {
		s.logger.Debug("video range ended early", "path", path, "start", br.Start, "error", err)
	}
	return nil
}
