package ui

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
	"github.com/sportcut/sportcut-agent/internal/editor"
	"github.com/sportcut/sportcut-agent/internal/pipeline"
)

//go:embed icon.png
var iconBytes []byte

// StateSource is the part of the editor the tray reads.
type StateSource interface {
	Snapshot() editor.Snapshot
}

type Tray struct {
	source StateSource
	apiURL string
	logger *slog.Logger

	statusItem *systray.MenuItem
	videoItem  *systray.MenuItem
	saveItem   *systray.MenuItem

	mu    sync.Mutex
	ready bool

	onSave func() error
	onQuit func()
}

type TrayConfig struct {
	Source StateSource
	APIURL string
	Logger *slog.Logger
	OnSave func() error
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		source: cfg.Source,
		apiURL: cfg.APIURL,
		logger: cfg.Logger,
		onSave: cfg.OnSave,
		onQuit: cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("SportCut")
	systray.SetTooltip("SportCut Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current ingestion status")
	t.statusItem.Disable()

	t.videoItem = systray.AddMenuItem("No video loaded", "Loaded video")
	t.videoItem.Disable()

	apiItem := systray.AddMenuItem("API: "+t.apiURL, "Loopback API address")
	apiItem.Disable()

	systray.AddSeparator()

	t.saveItem = systray.AddMenuItem("Save Changes", "Send highlight edits to the analysis server")
	t.saveItem.Disable()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit SportCut Agent")

	t.mu.Lock()
	t.ready = true
	t.mu.Unlock()
	t.Refresh()

	go func() {
		for {
			select {
			case <-t.saveItem.ClickedCh:
				t.handleSave()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleSave() {
	if t.onSave == nil {
		return
	}
	if err := t.onSave(); err != nil {
		t.logger.Error("save from tray failed", "error", err)
	}
}

// Refresh redraws the menu from the current editor state. It is safe to call
// before the tray is ready.
func (t *Tray) Refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready || t.source == nil {
		return
	}

	view := describe(t.source.Snapshot())
	t.statusItem.SetTitle(view.status)
	t.videoItem.SetTitle(view.video)
	t.saveItem.SetTitle(view.save)
	if view.canSave {
		t.saveItem.Enable()
	} else {
		t.saveItem.Disable()
	}
	systray.SetTooltip(view.tooltip)
}

func (t *Tray) Quit() {
	systray.Quit()
}

type trayView struct {
	status  string
	video   string
	save    string
	tooltip string
	canSave bool
}

func describe(snap editor.Snapshot) trayView {
	v := trayView{video: "No video loaded", save: "Save Changes", tooltip: "SportCut Agent"}

	st := snap.Pipeline
	switch {
	case st.Stage == pipeline.Failed:
		v.status = "Status: Failed"
		if st.Err != "" {
			v.status += " (" + st.Err + ")"
		}
	case st.Stage == pipeline.Idle || st.Stage == pipeline.Done:
		v.status = "Status: " + st.Stage.String()
	default:
		v.status = fmt.Sprintf("Status: %s %d%%", st.Stage, st.Progress)
	}

	if s := snap.Session; s != nil {
		v.video = "Video: " + s.Filename
		v.tooltip = "SportCut Agent: " + s.Filename
	}
	if snap.Dirty {
		v.save = "Save Changes (unsaved)"
		v.tooltip += " (unsaved changes)"
	}
	v.canSave = snap.Session != nil && snap.Dirty && !snap.Busy.Saving
	return v
}
