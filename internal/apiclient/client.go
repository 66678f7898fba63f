// Package apiclient is the HTTP adapter for the product search backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hyperjump/boutique/internal/ingest"
	"github.com/hyperjump/boutique/internal/models"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every request made by a Client.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a non-2xx body is read when looking for a detail message.
const maxErrorBody = 1 << 20

// Client talks to {baseURL}/api/v1. It never retries and never caches.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is overwritten by the client timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets a logger for request tracing at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the backend at baseURL (e.g. "http://localhost:8000").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	hc := &http.Client{}
	if c.httpClient != nil {
		copied := *c.httpClient
		hc = &copied
	}
	hc.Timeout = c.timeout
	c.httpClient = hc
	return c
}

// BaseURL returns the API root every request is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CheckHealth calls GET /health.
func (c *Client) CheckHealth(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	if err := c.do(ctx, "check health", http.MethodGet, "/health", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchByKeyword calls POST /search/keyword. topK <= 0 means models.DefaultTopK.
func (c *Client) SearchByKeyword(ctx context.Context, query string, topK int) (*models.SearchResponse, error) {
	body := models.KeywordSearchRequest{Query: query, TopK: models.NormalizeTopK(topK)}
	return c.postJSON(ctx, "keyword search", "/search/keyword", body)
}

// SearchByImageURL calls POST /search/image/url. topK <= 0 means models.DefaultTopK.
func (c *Client) SearchByImageURL(ctx context.Context, imageURL string, topK int) (*models.SearchResponse, error) {
	body := models.ImageURLSearchRequest{ImageURL: imageURL, TopK: models.NormalizeTopK(topK)}
	return c.postJSON(ctx, "image url search", "/search/image/url", body)
}

// SearchByImageUpload calls POST /search/image/upload?top_k=N with file as the multipart
// field "file". The bytes are sent as-is under the file's declared content type.
func (c *Client) SearchByImageUpload(ctx context.Context, file *ingest.File, topK int) (*models.SearchResponse, error) {
	const op = "image upload search"
	if file == nil {
		return nil, &RequestError{Op: op, Kind: KindTransport, Err: errors.New("no file")}
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+escapeQuotes(file.Name)+`"`)
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, &RequestError{Op: op, Kind: KindTransport, Err: errors.Wrap(err, "create multipart part")}
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, &RequestError{Op: op, Kind: KindTransport, Err: errors.Wrap(err, "write multipart part")}
	}
	if err := mw.Close(); err != nil {
		return nil, &RequestError{Op: op, Kind: KindTransport, Err: errors.Wrap(err, "close multipart writer")}
	}

	path := "/search/image/upload?" + url.Values{"top_k": {strconv.Itoa(models.NormalizeTopK(topK))}}.Encode()
	var out models.SearchResponse
	if err := c.do(ctx, op, http.MethodPost, path, mw.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload interface{}) (*models.SearchResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &RequestError{Op: op, Kind: KindTransport, Err: errors.Wrap(err, "encode request")}
	}
	var out models.SearchResponse
	if err := c.do(ctx, op, http.MethodPost, path, "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &RequestError{Op: op, Kind: KindTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		reqErr := transportError(op, err)
		c.logger.Debug("request failed", zap.String("op", op), zap.String("kind", reqErr.Kind.String()), zap.Error(err))
		return reqErr
	}
	defer resp.Body.Close()
	c.logger.Debug("response received",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(op, resp.StatusCode, b)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportOrDecode(op, err)
	}
	return nil
}

// transportOrDecode separates a body read that timed out or broke from a malformed body.
func transportOrDecode(op string, err error) *RequestError {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &RequestError{Op: op, Kind: KindDecode, Err: err}
	}
	return transportError(op, err)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
