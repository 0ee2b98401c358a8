package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/waveshaper/pkg/jsonpath"
)

// HTTP sends each payload as the body of an HTTP request.
type HTTP struct {
	httpClient *http.Client
	url        string
	method     string
	headers    map[string]string
	ackPath    string
}

// Option is a function that configures an HTTP sink
type Option func(*HTTP)

// NewHTTP creates an HTTP sink posting to target with the given options
func NewHTTP(target string, options ...Option) *HTTP {
	h := &HTTP{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		url:     target,
		method:  http.MethodPost,
		headers: make(map[string]string),
	}

	for _, option := range options {
		option(h)
	}

	return h
}

// WithMethod sets the request method. An empty method keeps POST.
func WithMethod(method string) Option {
	return func(h *HTTP) {
		if method != "" {
			h.method = strings.ToUpper(method)
		}
	}
}

// WithTimeout sets the timeout for each request
func WithTimeout(timeout time.Duration) Option {
	return func(h *HTTP) {
		h.httpClient.Timeout = timeout
	}
}

// WithHeader adds a header to every request
func WithHeader(key, value string) Option {
	return func(h *HTTP) {
		h.headers[key] = value
	}
}

// WithAckPath requires path to exist in every JSON response body
func WithAckPath(path string) Option {
	return func(h *HTTP) {
		h.ackPath = path
	}
}

// WithHTTPClient replaces the underlying client
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) {
		h.httpClient = c
	}
}

// Send implements Sink.
//
// A non-2xx status, or a response missing the ack path, is returned as a
// *SendError together with the Result.
func (h *HTTP) Send(ctx context.Context, msg Message) (Result, error) {
	req, err := h.newRequest(msg)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	var firstByte time.Duration
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByte = time.Since(start)
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(ctx, trace))

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return Result{Duration: time.Since(start)}, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()

	result := Result{
		Bytes:           len(msg.Payload),
		Status:          resp.StatusCode,
		Body:            body,
		Duration:        time.Since(start),
		TimeToFirstByte: firstByte,
	}
	if err != nil {
		return result, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &SendError{Status: resp.StatusCode, Body: body}
	}

	if h.ackPath != "" && !jsonpath.Exists(body, h.ackPath) {
		return result, &SendError{Status: resp.StatusCode, Body: body, Reason: fmt.Sprintf("missing ack %s", h.ackPath)}
	}

	return result, nil
}

func (h *HTTP) newRequest(msg Message) (*http.Request, error) {
	target := h.url
	var body io.Reader

	if h.method == http.MethodGet {
		u, err := url.Parse(h.url)
		if err != nil {
			return nil, fmt.Errorf("invalid sink URL: %w", err)
		}
		q := u.Query()
		q.Set("payload", string(msg.Payload))
		u.RawQuery = q.Encode()
		target = u.String()
	} else {
		body = bytes.NewReader(msg.Payload)
	}

	req, err := http.NewRequest(h.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", contentType(msg.Payload))
	}
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

func contentType(payload []byte) string {
	if gjson.ValidBytes(payload) {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

// Close releases idle connections.
func (h *HTTP) Close() error {
	h.httpClient.CloseIdleConnections()
	return nil
}
