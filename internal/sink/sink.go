// Package sink delivers payloads downstream.
package sink

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/waveshaper/internal/config"
)

// Message is one payload handed to a sink.
type Message struct {
	Worker    int
	Iteration int64
	Payload   []byte
}

// Result describes a delivered payload.
type Result struct {
	// Bytes is the number of payload bytes written
	Bytes int

	// Status is the HTTP status code, zero for other sinks
	Status int

	// Body is the response body, nil for sinks without responses
	Body []byte

	// Duration is the time spent in Send
	Duration time.Duration

	// TimeToFirstByte is the time until the first response byte (HTTP only)
	TimeToFirstByte time.Duration
}

// Sink sends payloads. Implementations are safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, msg Message) (Result, error)
	Close() error
}

// SendError is returned for a response that was received but rejected.
type SendError struct {
	Status int
	Body   []byte
	Reason string
}

func (e *SendError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200] + "..."
	}

	msg := fmt.Sprintf("sink rejected payload: status %d", e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if body != "" {
		msg += ": " + body
	}
	return msg
}

// New builds the sink described by cfg.
func New(cfg config.SinkConfig) (Sink, error) {
	switch cfg.Type {
	case "", "discard":
		return &Discard{}, nil
	case "stdout":
		return NewWriter(os.Stdout), nil
	case "file":
		return NewFile(cfg.Path, cfg.Append)
	case "http":
		opts := []Option{
			WithMethod(cfg.Method),
			WithTimeout(cfg.Timeout.GetDuration(config.DefaultHTTPTimeout)),
			WithAckPath(cfg.AckPath),
		}
		for k, v := range cfg.Headers {
			opts = append(opts, WithHeader(k, v))
		}
		return NewHTTP(cfg.URL, opts...), nil
	default:
		return nil, fmt.Errorf("unknown sink type: %q", cfg.Type)
	}
}

// Discard drops every payload. It still honours cancellation.
type Discard struct {
	sent  atomic.Int64
	bytes atomic.Int64
}

// Send implements Sink.
func (d *Discard) Send(ctx context.Context, msg Message) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	d.sent.Add(1)
	d.bytes.Add(int64(len(msg.Payload)))
	return Result{Bytes: len(msg.Payload)}, nil
}

// Sent returns the number of payloads dropped.
func (d *Discard) Sent() int64 {
	return d.sent.Load()
}

// Bytes returns the number of payload bytes dropped.
func (d *Discard) Bytes() int64 {
	return d.bytes.Load()
}

// Close implements Sink.
func (d *Discard) Close() error {
	return nil
}
