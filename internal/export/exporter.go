package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/sportcut/sportcut-agent/internal/cloud"
	"github.com/sportcut/sportcut-agent/internal/highlight"
	"github.com/sportcut/sportcut-agent/internal/journal"
	"github.com/sportcut/sportcut-agent/internal/metrics"
	"github.com/sportcut/sportcut-agent/internal/session"
)

var (
	ErrEmptySelection        = errors.New("no highlights selected")
	ErrMissingFileIdentifier = errors.New("no ingested video to export")
	ErrExportFailed          = errors.New("export failed")
	ErrBusy                  = errors.New("an export is already in progress")
)

// RejectedError carries the reason the server gave for refusing an export.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return e.Message
}

func (e *RejectedError) Unwrap() error {
	return ErrExportFailed
}

// Options are the rendering switches sent with an export.
type Options struct {
	ShowTextOverlay      bool `json:"show_text_overlay"`
	ShowTransitionEffect bool `json:"show_transition_effect"`
}

// Renderer is the part of the analysis client an export needs.
type Renderer interface {
	Export(ctx context.Context, req cloud.ExportRequest) (*cloud.ExportResponse, error)
}

// Recorder keeps export history.
type Recorder interface {
	RecordExport(ctx context.Context, e *journal.Export)
}

type Config struct {
	Client      Renderer
	DownloadDir string
	Recorder    Recorder
	Metrics     *metrics.Metrics
	// FrameRate of the source, used for cut lists.
	FrameRate float64
	Logger    *slog.Logger
}

// Result describes a file written to the download directory.
type Result struct {
	Path       string `json:"path"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size_bytes"`
	RangeCount int    `json:"range_count"`
}

// Exporter runs at most one render at a time.
type Exporter struct {
	cfg       Config
	rendering atomic.Bool
}

func New(cfg Config) *Exporter {
	if cfg.Recorder == nil {
		cfg.Recorder = (*journal.Service)(nil)
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Exporter{cfg: cfg}
}

func (e *Exporter) Busy() bool {
	return e.rendering.Load()
}

// Job is a claimed render whose request was captured from the selection.
type Job struct {
	e    *Exporter
	sess *session.Session
	req  cloud.ExportRequest
	once sync.Once
}

// Prepare checks preconditions, captures the request and claims the
// exporter. Nothing is sent to the server when it fails. The caller must
// Run or Release the job.
func (e *Exporter) Prepare(sess *session.Session, store *highlight.Store, opts Options) (*Job, error) {
	if sess == nil || sess.FileID == "" {
		return nil, ErrMissingFileIdentifier
	}
	ranges := BuildRanges(store)
	if len(ranges) == 0 {
		return nil, ErrEmptySelection
	}
	if err := ValidateDownloadDir(e.cfg.DownloadDir); err != nil {
		return nil, err
	}
	if e.rendering.Swap(true) {
		return nil, ErrBusy
	}
	return &Job{
		e:    e,
		sess: sess,
		req: cloud.ExportRequest{
			VideoName:            sess.FileID,
			Ranges:               ranges,
			ShowTextOverlay:      opts.ShowTextOverlay,
			ShowTransitionEffect: opts.ShowTransitionEffect,
		},
	}, nil
}

// Request returns the captured request body.
func (j *Job) Request() cloud.ExportRequest {
	return j.req
}

func (j *Job) Release() {
	j.once.Do(func() { j.e.rendering.Store(false) })
}

// Run asks the server to render the ranges and saves the result into the
// download directory. The selection is never modified.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	defer j.Release()

	e := j.e
	logger := e.cfg.Logger.With("file_id", j.sess.FileID, "ranges", len(j.req.Ranges))
	res, err := j.render(ctx)
	if err != nil {
		logger.Warn("export failed", "error", err)
		e.cfg.Metrics.IncExports(journal.ExportKindRender, "failed")
		e.record(ctx, j.sess, journal.ExportKindRender, len(j.req.Ranges), nil, err)
		return nil, err
	}

	logger.Info("export saved", "path", res.Path, "size", humanize.IBytes(uint64(res.Size)))
	e.cfg.Metrics.IncExports(journal.ExportKindRender, "ok")
	e.cfg.Metrics.AddExportBytes(res.Size)
	e.record(ctx, j.sess, journal.ExportKindRender, len(j.req.Ranges), res, nil)
	return res, nil
}

func (j *Job) render(ctx context.Context) (*Result, error) {
	resp, err := j.e.cfg.Client.Export(ctx, j.req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	name := SafeFilename(resp.Filename)
	if name == "" {
		name = DefaultFilename(j.sess)
	}
	path, size, err := j.e.save(resp.Body, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	return &Result{Path: path, Filename: name, Size: size, RangeCount: len(j.req.Ranges)}, nil
}

// Export prepares and runs a render in one call.
func (e *Exporter) Export(ctx context.Context, sess *session.Session, store *highlight.Store, opts Options) (*Result, error) {
	job, err := e.Prepare(sess, store, opts)
	if err != nil {
		return nil, err
	}
	return job.Run(ctx)
}

// ExportEDL writes a cut list of the given ranges without contacting the
// server.
func (e *Exporter) ExportEDL(ctx context.Context, sess *session.Session, ranges []cloud.Range) (*Result, error) {
	if sess == nil || sess.FileID == "" {
		return nil, ErrMissingFileIdentifier
	}
	if len(ranges) == 0 {
		return nil, ErrEmptySelection
	}
	if err := ValidateDownloadDir(e.cfg.DownloadDir); err != nil {
		return nil, err
	}

	name := sess.BaseName() + "_highlights.edl"
	edl := GenerateEDL(ranges, sess.SourcePath, sess.BaseName(), e.cfg.FrameRate)
	path, size, err := e.save(strings.NewReader(edl), name)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrExportFailed, err)
		e.cfg.Metrics.IncExports(journal.ExportKindEDL, "failed")
		e.record(ctx, sess, journal.ExportKindEDL, len(ranges), nil, err)
		return nil, err
	}

	res := &Result{Path: path, Filename: name, Size: size, RangeCount: len(ranges)}
	e.cfg.Logger.Info("cut list written", "file_id", sess.FileID, "path", path, "ranges", len(ranges))
	e.cfg.Metrics.IncExports(journal.ExportKindEDL, "ok")
	e.record(ctx, sess, journal.ExportKindEDL, len(ranges), res, nil)
	return res, nil
}

// DefaultFilename names a render when the server suggests nothing usable.
func DefaultFilename(sess *session.Session) string {
	return fmt.Sprintf("%s_edited_highlights.%s", sess.BaseName(), sess.Ext())
}

// save streams r into a temporary file in the download directory and then
// moves it to a free name. The temporary file never outlives the call.
func (e *Exporter) save(r io.Reader, name string) (string, int64, error) {
	tmp, err := os.CreateTemp(e.cfg.DownloadDir, ".sportcut-*.part")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, fmt.Errorf("write export: %w", err)
	}

	path, err := placeFile(tmp.Name(), e.cfg.DownloadDir, name)
	if err != nil {
		return "", 0, err
	}
	return path, n, nil
}

func (e *Exporter) record(ctx context.Context, sess *session.Session, kind string, ranges int, res *Result, err error) {
	entry := &journal.Export{
		FileID:     sess.FileID,
		Kind:       kind,
		RangeCount: ranges,
		Status:     journal.ExportStatusCompleted,
	}
	if res != nil {
		entry.Path = res.Path
		entry.SizeBytes = res.Size
	}
	if err != nil {
		entry.Status = journal.ExportStatusFailed
		entry.Error = err.Error()
	}
	e.cfg.Recorder.RecordExport(context.WithoutCancel(ctx), entry)
}

// classify maps a client failure to what the user is told.
func classify(err error) error {
	if errors.Is(err, cloud.ErrNetwork) || errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *cloud.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return &RejectedError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	return fmt.Errorf("%w: %w", ErrExportFailed, err)
}
