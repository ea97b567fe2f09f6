// Package editor owns the highlight timeline of the loaded video and turns
// user intents into store, playback, save and export operations. Every
// intent is applied under one lock, so observers never see a half-applied
// change.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sportcut/sportcut-agent/internal/cloud"
	"github.com/sportcut/sportcut-agent/internal/export"
	"github.com/sportcut/sportcut-agent/internal/highlight"
	"github.com/sportcut/sportcut-agent/internal/metrics"
	"github.com/sportcut/sportcut-agent/internal/pipeline"
	"github.com/sportcut/sportcut-agent/internal/playback"
	"github.com/sportcut/sportcut-agent/internal/reconcile"
	"github.com/sportcut/sportcut-agent/internal/session"
)

var ErrUnknownCategory = errors.New("category not found")

type Config struct {
	Pipeline   *pipeline.Pipeline
	Reconciler *reconcile.Reconciler
	Exporter   *export.Exporter
	Metrics    *metrics.Metrics
	Clock      Clock
	PageSize   int
	Logger     *slog.Logger
	// OnChange, when set, is called after state changes, outside the lock.
	OnChange func()
}

type Editor struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	store    *highlight.Store
	pager    *highlight.Pager
	ids      *highlight.IDSource
	player   *playback.VirtualPlayer
	clamp    *playback.Clamp
	status   *StatusBoard
	session  *session.Session
	pipe     pipeline.State
	options  export.Options
	runToken uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Editor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	store := highlight.NewStore()
	store.Load(nil, nil)
	player := playback.NewVirtualPlayer()
	ctx, cancel := context.WithCancel(context.Background())
	return &Editor{
		cfg:    cfg,
		logger: cfg.Logger,
		store:  store,
		pager:  highlight.NewPager(cfg.PageSize),
		ids:    highlight.NewIDSource(),
		player: player,
		clamp:  playback.NewClamp(player),
		status: NewStatusBoard(cfg.Clock),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close cancels a running ingestion and waits for it to stop.
func (e *Editor) Close() {
	e.cancel()
	e.wg.Wait()
}

// Wait blocks until the current ingestion, if any, has finished.
func (e *Editor) Wait() {
	e.wg.Wait()
}

func (e *Editor) changed() {
	if e.cfg.OnChange != nil {
		e.cfg.OnChange()
	}
}

// SelectFile starts ingesting path in the background. Validation failures
// and a run already in progress are reported immediately.
func (e *Editor) SelectFile(path string) error {
	job, err := e.cfg.Pipeline.Prepare(path)
	if err != nil {
		if !errors.Is(err, pipeline.ErrBusy) {
			e.mu.Lock()
			e.status.Post(ChannelValidation, LevelError, err.Error(), TTLValidation)
			e.mu.Unlock()
			e.changed()
		}
		return err
	}

	e.mu.Lock()
	e.runToken++
	sink := &runSink{e: e, token: e.runToken}
	e.pipe = pipeline.Start()
	e.mu.Unlock()
	e.changed()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if _, err := job.Execute(e.ctx, sink); err != nil {
			e.logger.Debug("background ingestion ended with error", "error", err)
		}
	}()
	return nil
}

// runSink feeds one run's progress and result into the editor.
type runSink struct {
	e     *Editor
	token uint64
}

func (s *runSink) Publish(st pipeline.State) {
	e := s.e
	e.mu.Lock()
	if s.token == e.runToken {
		e.pipe = st
		if st.Stage == pipeline.Failed {
			e.status.Post(ChannelIngest, LevelError, "Ingestion failed: "+st.Message, TTLIngestFailed)
		}
	}
	e.mu.Unlock()
	e.changed()
}

func (s *runSink) Load(res *pipeline.Result) {
	e := s.e
	e.mu.Lock()
	if s.token != e.runToken {
		e.mu.Unlock()
		return
	}
	e.load(res)
	e.mu.Unlock()
	e.changed()
}

func (e *Editor) load(res *pipeline.Result) {
	dropped := e.store.Load(res.Detected, res.Prior)
	if res.Prior != nil {
		for _, iv := range res.Prior.Custom {
			e.ids.Observe(iv.ID)
		}
	}
	e.pager.Reset()
	e.pager.Sync(e.store.Categories())
	e.player.Load(res.Duration)
	e.clamp.Clear()
	e.session = res.Session
	e.cfg.Metrics.SetUnsaved(false)
	if dropped > 0 {
		e.logger.Warn("skipped unusable highlights", "file_id", res.Session.FileID, "count", dropped)
	}
}

// ToggleSelection flips key in or out of the selection.
func (e *Editor) ToggleSelection(key highlight.Key) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Toggle(key)
}

// DeleteDetected hides a detected highlight and keeps paging in range.
func (e *Editor) DeleteDetected(category highlight.Category, id highlight.ID) error {
	e.mu.Lock()
	err := e.store.DeleteDetected(category, id)
	if err == nil {
		e.pager.Sync(e.store.Categories())
		e.cfg.Metrics.SetUnsaved(true)
	}
	e.mu.Unlock()
	if err == nil {
		e.changed()
	}
	return err
}

func (e *Editor) DeleteCustom(id highlight.ID) error {
	e.mu.Lock()
	err := e.store.DeleteCustom(id)
	if err == nil {
		e.cfg.Metrics.SetUnsaved(true)
	}
	e.mu.Unlock()
	if err == nil {
		e.changed()
	}
	return err
}

// AddCustom creates a user highlight. Bounds are checked against the video
// duration when it is known.
func (e *Editor) AddCustom(start, end float64, label string) (highlight.Interval, error) {
	e.mu.Lock()
	iv, err := highlight.NewInterval(e.ids.Next(), start, end, highlight.CategoryCustom, label, e.player.Duration())
	if err == nil {
		iv.UserAuthored = true
		err = e.store.AddCustom(iv)
	}
	if err == nil {
		e.cfg.Metrics.SetUnsaved(true)
	}
	e.mu.Unlock()
	if err != nil {
		return highlight.Interval{}, err
	}
	e.changed()
	return iv, nil
}

// Save sends the full edit state to the server. The lock is not held while
// the request is in flight.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	p, err := e.cfg.Reconciler.Begin(e.session, e.store)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	err = p.Send(ctx)

	e.mu.Lock()
	if err != nil {
		e.status.Post(ChannelSave, LevelError, "save failed: "+pipeline.Cause(err), TTLSaveFailed)
	} else {
		e.store.MarkSaved(p.Revision)
		e.status.Post(ChannelSave, LevelInfo, "changes saved", TTLSaveOK)
	}
	e.cfg.Metrics.SetUnsaved(e.store.Dirty())
	e.mu.Unlock()
	e.changed()
	return err
}

// Export renders the selection on the server and saves the file locally.
func (e *Editor) Export(ctx context.Context) (*export.Result, error) {
	e.mu.Lock()
	job, err := e.cfg.Exporter.Prepare(e.session, e.store, e.options)
	if err != nil && !errors.Is(err, export.ErrBusy) {
		e.status.Post(ChannelExport, LevelError, exportMessage(err), TTLExportFailed)
	}
	e.mu.Unlock()
	if err != nil {
		e.changed()
		return nil, err
	}

	res, err := job.Run(ctx)

	e.mu.Lock()
	if err != nil {
		e.status.Post(ChannelExport, LevelError, exportMessage(err), TTLExportFailed)
	} else {
		e.status.Post(ChannelExport, LevelInfo, "export saved to "+res.Path, TTLExportOK)
	}
	e.mu.Unlock()
	e.changed()
	return res, err
}

// ExportEDL writes a cut list of the selection.
func (e *Editor) ExportEDL(ctx context.Context) (*export.Result, error) {
	e.mu.Lock()
	sess := e.session
	ranges := export.BuildRanges(e.store)
	e.mu.Unlock()

	res, err := e.cfg.Exporter.ExportEDL(ctx, sess, ranges)

	e.mu.Lock()
	if err != nil {
		e.status.Post(ChannelExport, LevelError, exportMessage(err), TTLExportFailed)
	} else {
		e.status.Post(ChannelExport, LevelInfo, "cut list saved to "+res.Path, TTLExportOK)
	}
	e.mu.Unlock()
	e.changed()
	return res, err
}

func exportMessage(err error) string {
	var rejected *export.RejectedError
	switch {
	case errors.As(err, &rejected):
		return rejected.Message
	case errors.Is(err, export.ErrEmptySelection):
		return "select at least one highlight to export"
	case errors.Is(err, export.ErrMissingFileIdentifier):
		return "load a video before exporting"
	case errors.Is(err, cloud.ErrNetwork):
		return "export failed: no network connection"
	case errors.Is(err, export.ErrInvalidDownloadDir):
		return err.Error()
	}
	return "export failed"
}

func (e *Editor) SetOptions(opts export.Options) {
	e.mu.Lock()
	e.options = opts
	e.mu.Unlock()
	e.changed()
}

// SetPage moves category to page and returns the page actually shown.
func (e *Editor) SetPage(category highlight.Category, page int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.count(category)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return e.pager.SetPage(category, page, n), nil
}

func (e *Editor) SetActiveCategory(category highlight.Category) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.count(category); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	e.pager.SetActive(category)
	return nil
}

func (e *Editor) count(category highlight.Category) (int, bool) {
	for cat, n := range e.store.Categories() {
		if cat == category {
			return n, true
		}
	}
	return 0, false
}

// PlayHighlight plays key from its start and stops at its end.
func (e *Editor) PlayHighlight(key highlight.Key) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	iv, ok := e.store.Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s/%s", highlight.ErrUnknownHighlight, key.Category, key.ID)
	}
	end := iv.End
	return e.clamp.SeekAndPlay(iv.Start, &end)
}

// Seek plays freely from t.
func (e *Editor) Seek(t float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clamp.SeekAndPlay(t, nil)
}

// Skip jumps by delta seconds and returns the new position.
func (e *Editor) Skip(delta float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clamp.Skip(delta)
}

// ReportTime records the UI's playback position and applies the clamp.
func (e *Editor) ReportTime(t float64) {
	e.mu.Lock()
	e.player.ReportTime(t)
	e.clamp.OnTimeAdvance(t)
	e.mu.Unlock()
}

func (e *Editor) ReportDuration(d float64) {
	e.mu.Lock()
	e.player.ReportDuration(d)
	e.mu.Unlock()
}

func (e *Editor) Pause() {
	e.mu.Lock()
	e.player.Pause()
	e.mu.Unlock()
}

// Session returns the current ingestion, or nil.
func (e *Editor) Session() *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Dirty reports unsaved changes.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Dirty()
}
