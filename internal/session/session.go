// Package session carries the identity of the video produced by a successful
// ingestion. A nil *Session means no ingestion has completed yet.
package session

import (
	"path/filepath"
	"strings"
	"time"
)

type Session struct {
	// FileID is the server-side name of the uploaded video. Saves and exports
	// are keyed by it.
	FileID string
	// Filename is the local base name the user picked.
	Filename string
	// SourcePath is the absolute local path of the video.
	SourcePath    string
	SubtitleFiles []string
	// Duplicate is set when the server already knew this video and the
	// stored analysis was reused.
	Duplicate bool
	CreatedAt time.Time
}

// New builds a session for a completed ingestion.
func New(fileID, sourcePath string, subtitles []string, duplicate bool) *Session {
	if fileID == "" {
		fileID = filepath.Base(sourcePath)
	}
	return &Session{
		FileID:        fileID,
		Filename:      filepath.Base(sourcePath),
		SourcePath:    sourcePath,
		SubtitleFiles: append([]string(nil), subtitles...),
		Duplicate:     duplicate,
		CreatedAt:     time.Now(),
	}
}

// BaseName returns the server file id without its extension.
func (s *Session) BaseName() string {
	name := filepath.Base(s.FileID)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Ext returns the lowercase extension of the source video without the dot,
// defaulting to mp4.
func (s *Session) Ext() string {
	for _, name := range []string{s.Filename, s.FileID} {
		if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."); ext != "" {
			return ext
		}
	}
	return "mp4"
}
