package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
)

// HeaderCorrelationID carries the execution context's correlation ID
const HeaderCorrelationID = "X-Correlation-ID"

var json = sonic.ConfigStd

// Config configures a Client
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
}

// DefaultConfig returns the configuration of a client for baseURL
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		Timeout:   30 * time.Second,
		UserAgent: "adaptive-http/1.0",
	}
}

// Request describes one HTTP call
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Header map[string]string
	// Body is sent as JSON unless it is a string or []byte
	Body any
}

// Response is the buffered result of a call
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Latency    time.Duration
}

// JSON decodes the body into v
func (r Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// StatusError reports a response with a 4xx or 5xx status
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// Retryable reports whether a status is worth another attempt
func Retryable(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooEarly ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

// Client adapts resty to the execution.Operation contract. It never retries
// on its own; wrap Do in an adaptive retry executor instead.
type Client struct {
	resty *resty.Client
}

// New creates a client on a pooled transport
func New(cfg Config) *Client {
	// Pooled transport from retryablehttp; its retry loop is not used
	pooled := retryablehttp.NewClient()

	r := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeaders(cfg.Headers).
		SetTransport(pooled.HTTPClient.Transport)
	r.JSONMarshal = json.Marshal
	r.JSONUnmarshal = json.Unmarshal

	return &Client{resty: r}
}

// Do performs req. Its signature is an execution.Operation[Request, Response].
// Retryable statuses fail with a TransientError, other 4xx statuses with a
// PermanentError; transport errors are returned wrapped.
func (c *Client) Do(ctx context.Context, req Request, ec execution.Context) (Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := c.resty.R().
		SetContext(ctx).
		SetHeader(HeaderCorrelationID, ec.CorrelationID())
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if len(req.Header) > 0 {
		r.SetHeaders(req.Header)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(method, req.Path)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}

	out := Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
		Latency:    resp.Time(),
	}
	if out.StatusCode < http.StatusBadRequest {
		return out, nil
	}

	statusErr := &StatusError{StatusCode: out.StatusCode, Status: resp.Status()}
	if Retryable(out.StatusCode) {
		return out, execution.Transient(statusErr)
	}
	return out, execution.Permanent(statusErr)
}
