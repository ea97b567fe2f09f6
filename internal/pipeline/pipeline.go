package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sportcut/sportcut-agent/internal/cloud"
	"github.com/sportcut/sportcut-agent/internal/highlight"
	"github.com/sportcut/sportcut-agent/internal/journal"
	"github.com/sportcut/sportcut-agent/internal/metrics"
	"github.com/sportcut/sportcut-agent/internal/session"
)

var ErrBusy = errors.New("an ingestion is already running")

// DefaultSettleDelay is the pause before a run reports Done.
const DefaultSettleDelay = 500 * time.Millisecond

// Result is what a successful run hands to the editor.
type Result struct {
	Session  *session.Session
	Detected []highlight.Interval
	// Prior is non-nil when the server returned previously saved edits.
	Prior *highlight.Prior
	// Duration of the video in seconds; zero when unknown.
	Duration float64
}

// Sink receives run progress and the final result. Load is called before
// the Done state is published so observers never see Done with an empty
// timeline.
type Sink interface {
	Publish(State)
	Load(*Result)
}

// Recorder keeps run history.
type Recorder interface {
	StartRun(ctx context.Context, sourcePath string, size int64) *journal.Run
	FinishRun(ctx context.Context, run *journal.Run)
}

type Config struct {
	Client         cloud.Client
	Prober         Prober
	Recorder       Recorder
	Metrics        *metrics.Metrics
	DuplicateCheck bool
	SettleDelay    time.Duration
	Logger         *slog.Logger
}

// Pipeline runs at most one ingestion at a time. A second request while one
// is in flight is rejected with ErrBusy, never queued.
type Pipeline struct {
	cfg     Config
	running atomic.Bool
}

func New(cfg Config) *Pipeline {
	if cfg.Prober == nil {
		cfg.Prober = StubProber{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = (*journal.Service)(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	return &Pipeline{cfg: cfg}
}

func (p *Pipeline) Busy() bool {
	return p.running.Load()
}

// Job is a validated, claimed ingestion waiting to be executed.
type Job struct {
	p    *Pipeline
	path string
	size int64
	once sync.Once
}

// Prepare validates the file and claims the pipeline. Validation failures
// never start a run. The caller must Execute or Release the job.
func (p *Pipeline) Prepare(path string) (*Job, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	info, err := Validate(path)
	if err != nil {
		return nil, err
	}
	if p.running.Swap(true) {
		return nil, ErrBusy
	}
	return &Job{p: p, path: path, size: info.Size()}, nil
}

// Release frees the pipeline without running the job.
func (j *Job) Release() {
	j.once.Do(func() { j.p.running.Store(false) })
}

// Run validates and executes an ingestion of path synchronously.
func (p *Pipeline) Run(ctx context.Context, path string, sink Sink) (*Result, error) {
	job, err := p.Prepare(path)
	if err != nil {
		return nil, err
	}
	return job.Execute(ctx, sink)
}

type noopSink struct{}

func (noopSink) Publish(State) {}
func (noopSink) Load(*Result)  {}

// tracker serializes state changes; upload progress arrives from the upload
// goroutine.
type tracker struct {
	mu     sync.Mutex
	state  State
	sink   Sink
	logger *slog.Logger
}

func (t *tracker) advance(stage Stage, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, err := t.state.Advance(stage, progress, message)
	if err != nil {
		t.logger.Warn("ignored pipeline transition", "error", err)
		return
	}
	if next.Stage == t.state.Stage && next.Progress == t.state.Progress {
		t.state = next
		return
	}
	t.state = next
	t.sink.Publish(next)
}

func (t *tracker) fail(err error) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, ferr := t.state.Fail(err)
	if ferr != nil {
		return t.state
	}
	t.state = next
	t.sink.Publish(next)
	return next
}

func (t *tracker) current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Execute runs the job to a terminal state and releases the pipeline.
func (j *Job) Execute(ctx context.Context, sink Sink) (*Result, error) {
	defer j.Release()
	p := j.p
	if sink == nil {
		sink = noopSink{}
	}

	logger := p.cfg.Logger.With("file", filepath.Base(j.path))
	started := time.Now()
	run := p.cfg.Recorder.StartRun(ctx, j.path, j.size)

	t := &tracker{state: Start(), sink: sink, logger: logger}
	sink.Publish(t.current())

	result, duplicate, err := j.execute(ctx, t, sink, logger)

	run.Stage = t.current().Stage.String()
	run.Progress = t.current().Progress
	if err != nil {
		final := t.fail(err)
		run.Stage = final.Stage.String()
		run.Status = journal.RunStatusFailed
		run.Error = err.Error()
		p.cfg.Recorder.FinishRun(context.WithoutCancel(ctx), run)
		p.cfg.Metrics.ObserveRun("failed", time.Since(started))
		logger.Error("ingestion failed", "cause", final.Message, "error", err)
		return nil, err
	}

	run.Status = journal.RunStatusCompleted
	run.FileID = result.Session.FileID
	run.Duplicate = duplicate
	run.HighlightCount = len(result.Detected)
	p.cfg.Recorder.FinishRun(context.WithoutCancel(ctx), run)

	outcome := "done"
	if duplicate {
		outcome = "duplicate"
	}
	p.cfg.Metrics.ObserveRun(outcome, time.Since(started))
	logger.Info("ingestion finished",
		"file_id", result.Session.FileID,
		"duplicate", duplicate,
		"highlights", len(result.Detected),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}

func (j *Job) execute(ctx context.Context, t *tracker, sink Sink, logger *slog.Logger) (*Result, bool, error) {
	p := j.p
	filename := filepath.Base(j.path)

	t.advance(CheckingDuplicate, ProgressCheckingDuplicate, "checking for a previous analysis")
	if p.cfg.DuplicateCheck {
		dup, err := p.cfg.Client.CheckDuplicate(ctx, filename)
		if err != nil {
			return nil, false, err
		}
		if dup.IsDuplicate {
			result := &Result{
				Session:  session.New(dup.FileID, j.path, dup.SubtitleFiles, true),
				Detected: dup.Highlights.Intervals(),
				Prior:    priorFrom(dup.CustomHighlights, dup.DeletedHighlightIDs),
			}
			result.Duration = j.probe(ctx, logger)
			sink.Load(result)
			t.advance(Done, ProgressDone, "loaded the previous analysis")
			return result, true, nil
		}
	}

	t.advance(Uploading, ProgressUploadStart, "uploading "+humanize.IBytes(uint64(j.size)))
	uploaded, err := p.cfg.Client.Upload(ctx, j.path, func(sent, total int64) {
		if sent >= total {
			t.advance(Analyzing, ProgressAnalyzing, "upload complete, analysing")
			return
		}
		t.advance(Uploading, UploadProgress(sent, total),
			fmt.Sprintf("uploading %s of %s", humanize.IBytes(uint64(sent)), humanize.IBytes(uint64(total))))
	})
	if err != nil {
		return nil, false, err
	}
	p.cfg.Metrics.AddUploadBytes(j.size)
	t.advance(Analyzing, ProgressAnalyzing, "upload complete, analysing")

	detected := uploaded.Highlights.Intervals()
	t.advance(DetectingHighlights, ProgressDetectingHighlights, fmt.Sprintf("%d highlights detected", len(detected)))

	t.advance(GeneratingSubtitles, ProgressGeneratingSubtitles, "generating subtitles")
	var subtitles []string
	if subs, err := p.cfg.Client.GenerateSubtitles(ctx, uploaded.FileID); err != nil {
		logger.Warn("subtitle generation failed, continuing without subtitles", "file_id", uploaded.FileID, "error", err)
	} else {
		subtitles = subs.SubtitleFiles
	}

	t.advance(Finalizing, ProgressFinalizing, "finalizing")
	result := &Result{
		Session:  session.New(uploaded.FileID, j.path, subtitles, false),
		Detected: detected,
		Prior:    priorFrom(uploaded.CustomHighlights, uploaded.DeletedHighlightIDs),
	}
	result.Duration = j.probe(ctx, logger)

	if p.cfg.SettleDelay > 0 {
		timer := time.NewTimer(p.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false, ctx.Err()
		case <-timer.C:
		}
	}

	sink.Load(result)
	t.advance(Done, ProgressDone, "done")
	return result, false, nil
}

func (j *Job) probe(ctx context.Context, logger *slog.Logger) float64 {
	d, err := j.p.cfg.Prober.Duration(ctx, j.path)
	if err != nil {
		logger.Warn("could not read video duration", "error", err)
		return 0
	}
	return d
}

func priorFrom(custom []cloud.Highlight, deleted []highlight.ID) *highlight.Prior {
	if len(custom) == 0 && len(deleted) == 0 {
		return nil
	}
	return &highlight.Prior{
		Custom:     cloud.CustomIntervals(custom),
		Tombstones: append([]highlight.ID(nil), deleted...),
	}
}
