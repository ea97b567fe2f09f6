package editor

import (
	"github.com/sportcut/sportcut-agent/internal/export"
	"github.com/sportcut/sportcut-agent/internal/highlight"
	"github.com/sportcut/sportcut-agent/internal/pipeline"
	"github.com/sportcut/sportcut-agent/internal/playback"
)

// Snapshot is a self-contained copy of everything the UI renders.
type Snapshot struct {
	Pipeline       pipeline.State     `json:"pipeline"`
	Busy           BusyView           `json:"busy"`
	Session        *SessionView       `json:"session,omitempty"`
	Categories     []CategoryView     `json:"categories"`
	ActiveCategory highlight.Category `json:"active_category,omitempty"`
	Custom         []ItemView         `json:"custom"`
	Selection      []highlight.Key    `json:"selection"`
	Dirty          bool               `json:"dirty"`
	Options        export.Options     `json:"options"`
	Playback       PlaybackView       `json:"playback"`
	Messages       []Message          `json:"messages"`
}

type BusyView struct {
	Ingesting bool `json:"ingesting"`
	Saving    bool `json:"saving"`
	Exporting bool `json:"exporting"`
}

type SessionView struct {
	FileID        string   `json:"file_id"`
	Filename      string   `json:"filename"`
	SubtitleFiles []string `json:"subtitle_files"`
	Duplicate     bool     `json:"duplicate"`
}

// CategoryView is one category with the items of its current page.
type CategoryView struct {
	Category highlight.Category `json:"category"`
	Count    int                `json:"count"`
	Page     int                `json:"page"`
	LastPage int                `json:"last_page"`
	Items    []ItemView         `json:"items"`
}

type ItemView struct {
	ID       highlight.ID       `json:"id"`
	Start    float64            `json:"start"`
	End      float64            `json:"end"`
	Category highlight.Category `json:"category"`
	Label    string             `json:"label,omitempty"`
	Selected bool               `json:"selected"`
	// Custom is set for entries of the custom list.
	Custom bool `json:"custom,omitempty"`
}

// Key addresses the item in selection and delete calls.
func (v ItemView) Key() highlight.Key {
	if v.Custom {
		return highlight.CustomKey(v.ID)
	}
	return highlight.Key{Category: v.Category, ID: v.ID}
}

type PlaybackView struct {
	playback.PlayerState
	// ClampEnd is where playback will pause, when a highlight is playing.
	ClampEnd *float64 `json:"clamp_end,omitempty"`
}

func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Pipeline: e.pipe,
		Busy: BusyView{
			Ingesting: e.cfg.Pipeline != nil && e.cfg.Pipeline.Busy(),
			Saving:    e.cfg.Reconciler != nil && e.cfg.Reconciler.Busy(),
			Exporting: e.cfg.Exporter != nil && e.cfg.Exporter.Busy(),
		},
		Categories:     []CategoryView{},
		ActiveCategory: e.pager.Active(),
		Custom:         e.items(e.store.Custom(), true),
		Selection:      e.store.Selection(),
		Dirty:          e.store.Dirty(),
		Options:        e.options,
		Playback:       PlaybackView{PlayerState: e.player.State()},
		Messages:       e.status.Active(),
	}
	if snap.Selection == nil {
		snap.Selection = []highlight.Key{}
	}
	if end, ok := e.clamp.ActiveEnd(); ok {
		snap.Playback.ClampEnd = &end
	}
	if s := e.session; s != nil {
		snap.Session = &SessionView{
			FileID:        s.FileID,
			Filename:      s.Filename,
			SubtitleFiles: append([]string{}, s.SubtitleFiles...),
			Duplicate:     s.Duplicate,
		}
	}

	for cat, n := range e.store.Categories() {
		snap.Categories = append(snap.Categories, CategoryView{
			Category: cat,
			Count:    n,
			Page:     min(e.pager.Page(cat), e.pager.LastPage(n)),
			LastPage: e.pager.LastPage(n),
			Items:    e.items(e.pager.Window(cat, e.store.Detected(cat)), false),
		})
	}
	return snap
}

func (e *Editor) items(list []highlight.Interval, custom bool) []ItemView {
	out := make([]ItemView, 0, len(list))
	for _, iv := range list {
		key := highlight.Key{Category: iv.Category, ID: iv.ID}
		if custom {
			key = highlight.CustomKey(iv.ID)
		}
		out = append(out, ItemView{
			ID:       iv.ID,
			Start:    iv.Start,
			End:      iv.End,
			Category: iv.Category,
			Label:    iv.Label,
			Selected: e.store.IsSelected(key),
			Custom:   custom,
		})
	}
	return out
}
