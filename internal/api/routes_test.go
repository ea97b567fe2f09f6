package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sportcut/sportcut-agent/internal/cloud"
	"github.com/sportcut/sportcut-agent/internal/db"
	"github.com/sportcut/sportcut-agent/internal/editor"
	"github.com/sportcut/sportcut-agent/internal/export"
	"github.com/sportcut/sportcut-agent/internal/highlight"
	"github.com/sportcut/sportcut-agent/internal/journal"
	"github.com/sportcut/sportcut-agent/internal/metrics"
	"github.com/sportcut/sportcut-agent/internal/pipeline"
	"github.com/sportcut/sportcut-agent/internal/playback"
	"github.com/sportcut/sportcut-agent/internal/reconcile"
)

const testToken = "test-token-0123456789"

type testEnv struct {
	router      http.Handler
	editor      *editor.Editor
	journal     *journal.Service
	downloadDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := discardLogger()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	svc := journal.NewService(journal.NewRepository(database.Conn()), logger)

	m := metrics.New()
	client := cloud.NewStubClient(logger)
	downloadDir := t.TempDir()
	ed := editor.New(editor.Config{
		Pipeline:   pipeline.New(pipeline.Config{Client: client, Recorder: svc, Metrics: m, Logger: logger}),
		Reconciler: reconcile.New(client, m, logger),
		Exporter: export.New(export.Config{
			Client:      client,
			DownloadDir: downloadDir,
			Recorder:    svc,
			Metrics:     m,
			Logger:      logger,
		}),
		Metrics: m,
		Logger:  logger,
	})
	t.Cleanup(ed.Close)

	router := NewRouter(ServerConfig{
		Editor:    ed,
		Tokens:    staticTokens{token: testToken},
		Journal:   svc,
		Metrics:   m,
		Video:     playback.NewServer(logger),
		Logger:    logger,
		StartTime: time.Now(),
		Version:   "test",
		Offline:   true,
	})
	return &testEnv{router: router, editor: ed, journal: svc, downloadDir: downloadDir}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "127.0.0.1:50000"
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func (env *testEnv) ingest(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("0123456789abcdef"), 0o644); err != nil {
		t.Fatal(err)
	}
	rr := env.do(t, http.MethodPost, "/videos", SelectVideoRequest{Path: path})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("POST /videos status = %d, body = %s", rr.Code, rr.Body.String())
	}
	env.editor.Wait()
	return path
}

func (env *testEnv) state(t *testing.T) editor.Snapshot {
	t.Helper()
	rr := env.do(t, http.MethodGet, "/state", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /state status = %d", rr.Code)
	}
	var snap editor.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return snap
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, status, rr.Body.String())
	}
	if got := decodeJSONBody(t, rr)["code"]; got != code {
		t.Fatalf("code = %v, want %s", got, code)
	}
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["version"] != "test" || body["offline"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestStateRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/state", nil))
	expectError(t, rr, http.StatusUnauthorized, CodeUnauthorized)
}

func TestSelectVideo_Validation(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	empty := filepath.Join(dir, "empty.mp4")
	os.WriteFile(notes, []byte("x"), 0o644)
	os.WriteFile(empty, nil, 0o644)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing path", SelectVideoRequest{}, http.StatusBadRequest, CodeBadRequest},
		{"wrong type", SelectVideoRequest{Path: notes}, http.StatusBadRequest, CodeUnsupportedType},
		{"empty file", SelectVideoRequest{Path: empty}, http.StatusBadRequest, CodeBadRequest},
		{"missing file", SelectVideoRequest{Path: filepath.Join(dir, "gone.mp4")}, http.StatusNotFound, CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, env.do(t, http.MethodPost, "/videos", tt.body), tt.status, tt.code)
		})
	}

	snap := env.state(t)
	if len(snap.Messages) == 0 || snap.Messages[0].Channel != editor.ChannelValidation {
		t.Fatalf("messages = %+v, want a validation message", snap.Messages)
	}
}

func TestIngestAndEdit(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, "match.mp4")

	snap := env.state(t)
	if snap.Session == nil || snap.Session.FileID != "match.mp4" {
		t.Fatalf("session = %+v", snap.Session)
	}
	if len(snap.Categories) != 3 || snap.Dirty {
		t.Fatalf("categories = %+v, dirty = %v", snap.Categories, snap.Dirty)
	}

	rr := env.do(t, http.MethodPost, "/selection", KeyRequest{Category: "goal", ID: "1"})
	if rr.Code != http.StatusOK || decodeJSONBody(t, rr)["selected"] != true {
		t.Fatalf("toggle: %d %s", rr.Code, rr.Body.String())
	}
	expectError(t, env.do(t, http.MethodPost, "/selection", KeyRequest{Category: "goal", ID: "99"}), http.StatusNotFound, CodeNotFound)

	expectError(t, env.do(t, http.MethodPost, "/custom", AddCustomRequest{Start: 30, End: 20}), http.StatusBadRequest, CodeInvalidInterval)
	rr = env.do(t, http.MethodPost, "/custom", AddCustomRequest{Start: 100, End: 110, Label: "Nice pass"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add custom: %d %s", rr.Code, rr.Body.String())
	}
	var item editor.ItemView
	json.Unmarshal(rr.Body.Bytes(), &item)
	if !strings.HasPrefix(string(item.ID), "custom-") || item.Label != "Nice pass" {
		t.Fatalf("item = %+v", item)
	}

	if rr := env.do(t, http.MethodDelete, "/highlights/foul/3", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete detected: %d", rr.Code)
	}
	expectError(t, env.do(t, http.MethodDelete, "/highlights/foul/3", nil), http.StatusNotFound, CodeNotFound)
	if rr := env.do(t, http.MethodDelete, "/custom/"+string(item.ID), nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete custom: %d", rr.Code)
	}

	if !env.state(t).Dirty {
		t.Fatal("deletions should leave unsaved changes")
	}
	if rr := env.do(t, http.MethodPost, "/save", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("save: %d %s", rr.Code, rr.Body.String())
	}
	if env.state(t).Dirty {
		t.Fatal("save should clear unsaved changes")
	}
}

func TestPathParam(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathParam(r, "id")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, id)
	})

	tests := []struct {
		path string
		want string
	}{
		{"/items/plain", "plain"},
		{"/items/50%25", "50%"},
		{"/items/penalty%20kick", "penalty kick"},
		{"/items/a%2Fb", "a/b"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != http.StatusOK || rr.Body.String() != tt.want {
				t.Fatalf("GET %s = %d %q, want 200 %q", tt.path, rr.Code, rr.Body.String(), tt.want)
			}
		})
	}
}

func TestDeleteHighlight_PercentInID(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, "match.mp4")
	expectError(t, env.do(t, http.MethodDelete, "/highlights/goal/50%25", nil), http.StatusNotFound, CodeNotFound)
}

func TestPagingRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, "match.mp4")

	rr := env.do(t, http.MethodPut, "/pages/shoot", PageRequest{Page: 9})
	if rr.Code != http.StatusOK || decodeJSONBody(t, rr)["page"] != float64(0) {
		t.Fatalf("set page: %d %s", rr.Code, rr.Body.String())
	}
	expectError(t, env.do(t, http.MethodPut, "/pages/"+strings.ReplaceAll("penalty kick", " ", "%20"), PageRequest{}), http.StatusNotFound, CodeNotFound)

	if rr := env.do(t, http.MethodPut, "/active-category", CategoryRequest{Category: "foul"}); rr.Code != http.StatusNoContent {
		t.Fatalf("active category: %d", rr.Code)
	}
	if got := env.state(t).ActiveCategory; got != "foul" {
		t.Fatalf("active category = %q", got)
	}
}

func TestSaveAndExportWithoutVideo(t *testing.T) {
	env := newTestEnv(t)
	expectError(t, env.do(t, http.MethodPost, "/save", nil), http.StatusConflict, CodeMissingFileID)
	expectError(t, env.do(t, http.MethodPost, "/export", nil), http.StatusConflict, CodeMissingFileID)
}

func TestExportRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, "match.mp4")

	expectError(t, env.do(t, http.MethodPost, "/export", nil), http.StatusBadRequest, CodeEmptySelection)

	env.do(t, http.MethodPost, "/selection", KeyRequest{Category: "shoot", ID: "2"})
	env.do(t, http.MethodPost, "/selection", KeyRequest{Category: "goal", ID: "1"})

	// Rendering needs the analysis server; offline the rejection is passed on.
	rr := env.do(t, http.MethodPost, "/export", nil)
	expectError(t, rr, http.StatusBadGateway, CodeExportFailed)
	if msg := decodeJSONBody(t, rr)["error"]; msg != "rendering requires the analysis server" {
		t.Fatalf("error = %v", msg)
	}

	rr = env.do(t, http.MethodPost, "/export/edl", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("edl export: %d %s", rr.Code, rr.Body.String())
	}
	var res export.Result
	json.Unmarshal(rr.Body.Bytes(), &res)
	if res.RangeCount != 2 || filepath.Dir(res.Path) != env.downloadDir {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Fatalf("edl file: %v", err)
	}

	rr = env.do(t, http.MethodGet, "/exports", nil)
	var exports ExportsResponse
	json.Unmarshal(rr.Body.Bytes(), &exports)
	if len(exports.Exports) != 2 {
		t.Fatalf("exports = %d, want the failed render and the cut list", len(exports.Exports))
	}
}

func TestOptionsRoute(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPut, "/options", export.Options{ShowTextOverlay: true})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if opts := env.state(t).Options; !opts.ShowTextOverlay || opts.ShowTransitionEffect {
		t.Fatalf("options = %+v", opts)
	}

	req := httptest.NewRequest(http.MethodPut, "/options", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	expectError(t, rr, http.StatusBadRequest, CodeBadRequest)
}

func TestPlaybackRoutes(t *testing.T) {
	env := newTestEnv(t)
	expectError(t, env.do(t, http.MethodPost, "/playback/seek", SeekRequest{Time: 5}), http.StatusNotFound, CodeNotFound)

	env.ingest(t, "match.mp4")

	rr := env.do(t, http.MethodPost, "/playback/highlight", KeyRequest{Category: "goal", ID: "1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("play highlight: %d %s", rr.Code, rr.Body.String())
	}
	var pb editor.PlaybackView
	json.Unmarshal(rr.Body.Bytes(), &pb)
	if pb.Position != 12 || !pb.Playing || pb.ClampEnd == nil || *pb.ClampEnd != 24 {
		t.Fatalf("playback = %+v", pb)
	}

	rr = env.do(t, http.MethodPost, "/playback/skip", nil)
	if got := decodeJSONBody(t, rr)["position"]; got != 12+playback.DefaultSkip {
		t.Fatalf("skip position = %v", got)
	}
	rr = env.do(t, http.MethodPost, "/playback/skip", map[string]float64{"delta": -100})
	if got := decodeJSONBody(t, rr)["position"]; got != float64(0) {
		t.Fatalf("skip back position = %v", got)
	}

	env.do(t, http.MethodPost, "/playback/highlight", KeyRequest{Category: "goal", ID: "1"})
	rr = env.do(t, http.MethodPost, "/playback/time", SeekRequest{Time: 24})
	json.Unmarshal(rr.Body.Bytes(), &pb)
	if pb.Playing || pb.ClampEnd != nil {
		t.Fatalf("playback after end = %+v, want paused and unclamped", pb)
	}
}

func TestVideoRoute(t *testing.T) {
	env := newTestEnv(t)

	get := func(addr, rangeHeader string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/playback/video", nil)
		req.RemoteAddr = addr
		if rangeHeader != "" {
			req.Header.Set("Range", rangeHeader)
		}
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, req)
		return rr
	}

	expectError(t, get("127.0.0.1:1", ""), http.StatusNotFound, CodeNotFound)

	env.ingest(t, "match.mp4")
	expectError(t, get("10.1.2.3:1", ""), http.StatusForbidden, CodeForbidden)

	rr := get("127.0.0.1:1", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "0123456789abcdef" {
		t.Fatalf("full: %d %q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q", ct)
	}

	rr = get("127.0.0.1:1", "bytes=4-7")
	if rr.Code != http.StatusPartialContent || rr.Body.String() != "4567" {
		t.Fatalf("range: %d %q", rr.Code, rr.Body.String())
	}
	if cr := rr.Header().Get("Content-Range"); cr != "bytes 4-7/16" {
		t.Errorf("Content-Range = %q", cr)
	}
}

func TestListRuns(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, "match.mp4")

	rr := env.do(t, http.MethodGet, "/runs?limit=5", nil)
	var runs RunsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs.Runs) != 1 || runs.Runs[0].Status != journal.RunStatusCompleted {
		t.Fatalf("runs = %+v", runs.Runs)
	}
	expectError(t, env.do(t, http.MethodGet, "/runs?limit=zero", nil), http.StatusBadRequest, CodeBadRequest)
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, "match.mp4")
	env.do(t, http.MethodDelete, "/highlights/goal/1", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "sportcut_unsaved_changes 1") {
		t.Fatalf("metrics missing unsaved gauge:\n%s", rr.Body.String())
	}
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("x: %w", highlight.ErrInvalidInterval), http.StatusBadRequest, CodeInvalidInterval},
		{pipeline.ErrFileTooLarge, http.StatusBadRequest, CodeFileTooLarge},
		{pipeline.ErrBusy, http.StatusConflict, CodeBusy},
		{reconcile.ErrBusy, http.StatusConflict, CodeBusy},
		{export.ErrBusy, http.StatusConflict, CodeBusy},
		{highlight.ErrDuplicateID, http.StatusConflict, CodeConflict},
		{fmt.Errorf("save highlights: %w", cloud.ErrNetwork), http.StatusBadGateway, CodeNetwork},
		{&export.RejectedError{StatusCode: 422, Message: "bad ranges"}, http.StatusBadGateway, CodeExportFailed},
		{fmt.Errorf("%w: eof", export.ErrExportFailed), http.StatusBadGateway, CodeExportFailed},
		{&cloud.APIError{StatusCode: 500, Body: "oops"}, http.StatusBadGateway, CodeServerError},
		{playback.ErrNoMedia, http.StatusNotFound, CodeNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		writeDomainError(rr, discardLogger(), tt.err)
		if rr.Code != tt.status || decodeJSONBody(t, rr)["code"] != tt.code {
			t.Errorf("writeDomainError(%v) = %d %s, want %d %s", tt.err, rr.Code, rr.Body.String(), tt.status, tt.code)
		}
	}
}
