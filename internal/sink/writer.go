package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("sink is closed")

// Writer writes payloads to an io.Writer, one per line.
type Writer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	closed bool
}

// NewWriter returns a sink writing to w. Close flushes but does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// NewFile returns a sink writing to the file at path, creating parent
// directories as needed. The file is truncated unless appendTo is set.
func NewFile(path string, appendTo bool) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendTo {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	return &Writer{w: bufio.NewWriter(f), closer: f}, nil
}

// Send implements Sink.
func (w *Writer) Send(ctx context.Context, msg Message) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return Result{}, ErrClosed
	}

	n, err := w.w.Write(msg.Payload)
	if err == nil {
		err = w.w.WriteByte('\n')
	}
	if err != nil {
		return Result{Bytes: n}, fmt.Errorf("failed to write payload: %w", err)
	}

	return Result{Bytes: n, Duration: time.Since(start)}, nil
}

// Flush writes buffered payloads to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Flush()
}

// Close flushes buffered payloads and closes the file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	err := w.w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
