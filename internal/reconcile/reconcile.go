// Package reconcile pushes the edited highlight set back to the analysis
// server.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sportcut/sportcut-agent/internal/cloud"
	"github.com/sportcut/sportcut-agent/internal/highlight"
	"github.com/sportcut/sportcut-agent/internal/metrics"
	"github.com/sportcut/sportcut-agent/internal/session"
)

var (
	ErrMissingFileIdentifier = errors.New("no ingested video to save")
	ErrBusy                  = errors.New("a save is already in progress")
)

// Updater is the part of the analysis client a save needs.
type Updater interface {
	UpdateHighlights(ctx context.Context, fileID string, req cloud.UpdateRequest) error
}

// Reconciler sends full-replacement saves, one at a time.
type Reconciler struct {
	client  Updater
	metrics *metrics.Metrics
	logger  *slog.Logger
	saving  atomic.Bool
}

func New(client Updater, m *metrics.Metrics, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{client: client, metrics: m, logger: logger}
}

// Busy reports whether a save is in flight.
func (r *Reconciler) Busy() bool {
	return r.saving.Load()
}

// Payload builds the update body from the store. Live detected highlights
// come in category order then list order; tombstones are cumulative, so
// the same store always yields the same body.
func Payload(store *highlight.Store) cloud.UpdateRequest {
	detected := store.Flatten()
	req := cloud.UpdateRequest{
		Highlights:          make([]cloud.Highlight, 0, len(detected)),
		CustomHighlights:    make([]cloud.Highlight, 0, len(store.Custom())),
		DeletedHighlightIDs: store.Tombstones(),
	}
	if req.DeletedHighlightIDs == nil {
		req.DeletedHighlightIDs = []highlight.ID{}
	}
	for _, iv := range detected {
		req.Highlights = append(req.Highlights, cloud.FromInterval(iv))
	}
	for _, iv := range store.Custom() {
		req.CustomHighlights = append(req.CustomHighlights, cloud.FromInterval(iv))
	}
	return req
}

// Pending is a claimed save whose payload was captured at Revision. It lets
// callers that guard the store with a lock build the payload under the lock
// and send it without holding it.
type Pending struct {
	r        *Reconciler
	fileID   string
	req      cloud.UpdateRequest
	Revision uint64
	once     sync.Once
}

// Begin claims the reconciler and captures the payload. The caller must
// Send or Release the returned save.
func (r *Reconciler) Begin(sess *session.Session, store *highlight.Store) (*Pending, error) {
	if sess == nil || sess.FileID == "" {
		return nil, ErrMissingFileIdentifier
	}
	if r.saving.Swap(true) {
		return nil, ErrBusy
	}
	return &Pending{
		r:        r,
		fileID:   sess.FileID,
		req:      Payload(store),
		Revision: store.Revision(),
	}, nil
}

// Request returns the captured body.
func (p *Pending) Request() cloud.UpdateRequest {
	return p.req
}

func (p *Pending) Release() {
	p.once.Do(func() { p.r.saving.Store(false) })
}

// Send issues the update and releases the claim.
func (p *Pending) Send(ctx context.Context) error {
	defer p.Release()

	logger := p.r.logger.With("file_id", p.fileID)
	err := p.r.client.UpdateHighlights(ctx, p.fileID, p.req)
	if err != nil {
		p.r.metrics.IncSaves("failed")
		logger.Warn("save failed", "error", err)
		return fmt.Errorf("save highlights: %w", err)
	}
	p.r.metrics.IncSaves("ok")
	logger.Info("highlights saved",
		"highlights", len(p.req.Highlights),
		"custom", len(p.req.CustomHighlights),
		"deleted", len(p.req.DeletedHighlightIDs),
	)
	return nil
}

// Save builds, sends and acknowledges a save in one call. The store must not
// be used by anyone else for the duration. The dirty flag is cleared only if
// the store did not change while the request was in flight.
func (r *Reconciler) Save(ctx context.Context, sess *session.Session, store *highlight.Store) error {
	p, err := r.Begin(sess, store)
	if err != nil {
		return err
	}
	if err := p.Send(ctx); err != nil {
		return err
	}
	store.MarkSaved(p.Revision)
	return nil
}
