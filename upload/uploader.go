package upload

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pellucid-io/beacon/log"
)

// DefaultUploadTimeout bounds one upload request.
const DefaultUploadTimeout = 10 * time.Second

// Uploader performs the actual HTTP POST. Embedders may swap in their own
// networking stack.
type Uploader interface {
	// Upload POSTs body to url. Any server response counts as Success;
	// transport failures are recoverable.
	Upload(ctx context.Context, url string, body []byte, headers map[string]string) UploadResult
}

// HTTPUploader is the default net/http-based uploader.
type HTTPUploader struct {
	client *http.Client
	logger *log.Logger
}

// Verify HTTPUploader implements Uploader.
var _ Uploader = (*HTTPUploader)(nil)

// NewHTTPUploader creates an uploader with the given request timeout.
// timeout <= 0 selects the default.
func NewHTTPUploader(timeout time.Duration, logger *log.Logger) *HTTPUploader {
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &HTTPUploader{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Upload POSTs the ping body.
func (u *HTTPUploader) Upload(ctx context.Context, url string, body []byte, headers map[string]string) UploadResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		u.logger.Error("failed to build upload request", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return UploadResult{Status: UnrecoverableFailure}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		u.logger.Warn("upload request failed", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return UploadResult{Status: RecoverableFailure}
	}
	defer func() { _ = resp.Body.Close() }()

	return UploadResult{Status: Success, HTTPStatus: resp.StatusCode}
}

// StubRequest is one recorded upload for assertions.
type StubRequest struct {
	URL     string
	Body    []byte
	Headers map[string]string
}

// StubUploader records uploads and plays back scripted results. The zero
// value answers every upload with HTTP 200.
type StubUploader struct {
	mu       sync.Mutex
	requests []StubRequest
	results  []UploadResult
}

// Verify StubUploader implements Uploader.
var _ Uploader = (*StubUploader)(nil)

// QueueResult scripts the result of an upcoming upload. Results play back
// in order; once exhausted, uploads succeed with HTTP 200.
func (s *StubUploader) QueueResult(r UploadResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

// Upload implements Uploader by recording the request.
func (s *StubUploader) Upload(_ context.Context, url string, body []byte, headers map[string]string) UploadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, StubRequest{URL: url, Body: body, Headers: headers})
	if len(s.results) > 0 {
		r := s.results[0]
		s.results = s.results[1:]
		return r
	}
	return UploadResult{Status: Success, HTTPStatus: 200}
}

// Requests returns a copy of the recorded uploads.
func (s *StubUploader) Requests() []StubRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StubRequest, len(s.requests))
	copy(out, s.requests)
	return out
}
