package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNetwork marks failures where no HTTP response was received.
var ErrNetwork = errors.New("network unavailable")

// APIError represents a non-2xx response from the analysis server.
type APIError struct {
	StatusCode int
	Body       string
	// Message is the server's own error text when the body was structured.
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("analysis server: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("analysis server: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPClient talks to the highlight analysis server.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	// uploadClient has no overall timeout; uploads of large files are bounded
	// by the caller's context instead.
	uploadClient *http.Client
	logger       *slog.Logger
}

func NewHTTPClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		uploadClient: &http.Client{},
		logger:       logger,
	}
}

func (c *HTTPClient) CheckDuplicate(ctx context.Context, filename string) (*DuplicateResult, error) {
	var result DuplicateResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/check-duplicate/", DuplicateRequest{Filename: filename}, &result); err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	c.logger.Info("duplicate check finished",
		"filename", filename,
		"is_duplicate", result.IsDuplicate,
		"file_id", result.FileID,
	)
	return &result, nil
}

func (c *HTTPClient) GenerateSubtitles(ctx context.Context, fileID string) (*SubtitleResult, error) {
	var result SubtitleResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/generate-subtitles/", subtitleRequest{FileID: fileID}, &result); err != nil {
		return nil, fmt.Errorf("generate subtitles: %w", err)
	}
	return &result, nil
}

func (c *HTTPClient) UpdateHighlights(ctx context.Context, fileID string, req UpdateRequest) error {
	path := "/api/update-highlights/" + url.PathEscape(fileID) + "/"
	if err := c.doJSON(ctx, http.MethodPut, path, req, nil); err != nil {
		return fmt.Errorf("update highlights: %w", err)
	}
	c.logger.Info("highlights saved",
		"file_id", fileID,
		"highlights", len(req.Highlights),
		"custom", len(req.CustomHighlights),
		"deleted", len(req.DeletedHighlightIDs),
	)
	return nil
}

// ExportResponse is a rendered export. The caller must close Body.
type ExportResponse struct {
	Body io.ReadCloser
	// Filename is taken from Content-Disposition and is empty when absent.
	Filename      string
	ContentLength int64
}

func (c *HTTPClient) Export(ctx context.Context, req ExportRequest) (*ExportResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal export request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/export-highlights/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Info("requesting export",
		"video_name", req.VideoName,
		"ranges", len(req.Ranges),
	)

	// Rendering can outlast the regular request timeout.
	resp, err := c.uploadClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("export highlights: %w", networkError(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("export highlights: %w", readAPIError(resp))
	}

	return &ExportResponse{
		Body:          resp.Body,
		Filename:      DispositionFilename(resp.Header.Get("Content-Disposition")),
		ContentLength: resp.ContentLength,
	}, nil
}

// DispositionFilename extracts the filename parameter of a Content-Disposition
// header, falling back to a lenient split for malformed values.
func DispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	_, after, ok := strings.Cut(header, "filename=")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(after, ';'); i >= 0 {
		after = after[:i]
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(after), `"'`))
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("analysis server request",
		"method", method,
		"path", path,
		"request_id", req.Header.Get("X-Request-Id"),
		"body_bytes", len(body),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) *APIError {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}

	var structured struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(respBody, &structured) == nil {
		apiErr.Message = structured.Error
		if apiErr.Message == "" {
			apiErr.Message = structured.Detail
		}
	}
	return apiErr
}

// networkError tags transport failures with ErrNetwork. Cancellation by the
// caller is passed through unchanged.
func networkError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
