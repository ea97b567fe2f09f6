package cloud

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sportcut/sportcut-agent/internal/highlight"
)

// Highlight is the wire form of a detected or custom highlight.
// Detected entries carry their category in Type; custom entries carry the
// user label in both Name and Type.
type Highlight struct {
	ID    highlight.ID `json:"id"`
	Start float64      `json:"start"`
	End   float64      `json:"end"`
	Type  string       `json:"type,omitempty"`
	Name  string       `json:"name,omitempty"`
}

// HighlightList decodes the detected highlights payload. The server sends
// either a flat list or an object keyed by category; for the object form the
// key fills in Type when the entry has none. Key order is preserved.
type HighlightList []Highlight

func (l *HighlightList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	switch data[0] {
	case '[':
		var flat []Highlight
		if err := json.Unmarshal(data, &flat); err != nil {
			return err
		}
		*l = flat
		return nil
	case '{':
		return l.decodeGrouped(data)
	}
	return fmt.Errorf("highlights must be a list or an object, got %q", data[:1])
}

func (l *HighlightList) decodeGrouped(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}

	var out []Highlight
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var group []Highlight
		// Non-list values under a category key are ignored.
		if json.Unmarshal(raw, &group) != nil {
			continue
		}
		for _, h := range group {
			if h.Type == "" {
				h.Type = key
			}
			out = append(out, h)
		}
	}
	*l = out
	return nil
}

// Intervals converts the wire list into detector intervals.
func (l HighlightList) Intervals() []highlight.Interval {
	out := make([]highlight.Interval, 0, len(l))
	for _, h := range l {
		out = append(out, highlight.Interval{
			ID:       h.ID,
			Start:    h.Start,
			End:      h.End,
			Category: highlight.Category(h.Type),
			Label:    h.Name,
		})
	}
	return out
}

// CustomIntervals converts saved custom highlights into intervals.
func CustomIntervals(list []Highlight) []highlight.Interval {
	out := make([]highlight.Interval, 0, len(list))
	for _, h := range list {
		out = append(out, highlight.Interval{
			ID:           h.ID,
			Start:        h.Start,
			End:          h.End,
			Category:     highlight.CategoryCustom,
			Label:        h.Name,
			UserAuthored: true,
		})
	}
	return out
}

// FromInterval builds the wire form of a stored interval.
func FromInterval(iv highlight.Interval) Highlight {
	h := Highlight{ID: iv.ID, Start: iv.Start, End: iv.End, Type: string(iv.Category)}
	if iv.IsCustom() {
		h.Name = iv.Label
		h.Type = iv.Label
		if h.Type == "" {
			h.Type = "Custom"
		}
	}
	return h
}

// DuplicateRequest is the body of POST /api/check-duplicate/.
type DuplicateRequest struct {
	Filename string `json:"filename"`
}

// DuplicateResult reports whether the server already analysed a file with the
// same name, along with whatever was stored for it.
type DuplicateResult struct {
	IsDuplicate         bool           `json:"is_duplicate"`
	FileID              string         `json:"file_id,omitempty"`
	Highlights          HighlightList  `json:"highlights,omitempty"`
	CustomHighlights    []Highlight    `json:"custom_highlights,omitempty"`
	DeletedHighlightIDs []highlight.ID `json:"deleted_highlight_ids,omitempty"`
	SubtitleFiles       []string       `json:"subtitle_files,omitempty"`
}

// UploadResult is the response of POST /api/upload/.
type UploadResult struct {
	FileID              string         `json:"file_id"`
	Highlights          HighlightList  `json:"highlights"`
	CustomHighlights    []Highlight    `json:"custom_highlights,omitempty"`
	DeletedHighlightIDs []highlight.ID `json:"deleted_highlight_ids,omitempty"`
}

type subtitleRequest struct {
	FileID string `json:"file_id"`
}

// SubtitleResult is the response of POST /api/generate-subtitles/.
type SubtitleResult struct {
	SubtitleFiles []string `json:"subtitle_files"`
}

// UpdateRequest is the full-replacement body of
// PUT /api/update-highlights/{file_id}/.
type UpdateRequest struct {
	Highlights          []Highlight    `json:"highlights"`
	CustomHighlights    []Highlight    `json:"custom_highlights"`
	DeletedHighlightIDs []highlight.ID `json:"deleted_highlight_ids"`
}

// Range is one clip of an export request.
type Range struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Type     string  `json:"type"`
	Category string  `json:"category"`
	Name     string  `json:"name,omitempty"`
}

// ExportRequest is the body of POST /api/export-highlights/.
type ExportRequest struct {
	VideoName            string  `json:"videoName"`
	Ranges               []Range `json:"ranges"`
	ShowTextOverlay      bool    `json:"showTextOverlay"`
	ShowTransitionEffect bool    `json:"showTransitionEffect"`
}
