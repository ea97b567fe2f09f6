package cloud

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// ProgressFunc receives the number of file bytes sent so far and the file size.
type ProgressFunc func(sent, total int64)

// Upload streams the file at path as multipart form field "file" and returns
// the analysis result. The body is produced through a pipe so the file is never
// held in memory.
func (c *HTTPClient) Upload(ctx context.Context, path string, progress ProgressFunc) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}

	pr, pw := io.Pipe()
	// Closing the read side unblocks the writer if the server stops reading.
	defer pr.Close()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			src := &progressReader{r: f, total: info.Size(), fn: progress}
			_, err = io.Copy(part, src)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload/", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Info("uploading video",
		"filename", filepath.Base(path),
		"size_bytes", info.Size(),
		"request_id", req.Header.Get("X-Request-Id"),
	)

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", networkError(err))
	}
	defer resp.Body.Close()

	var result UploadResult
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	c.logger.Info("upload analysed",
		"file_id", result.FileID,
		"highlights", len(result.Highlights),
	)
	return &result, nil
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}
