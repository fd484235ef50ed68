package runnable

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrStreamClosed is returned by Send after the reader has closed the stream.
var ErrStreamClosed = errors.New("runnable: stream closed by reader")

type streamItem struct {
	value any
	err   error
}

// StreamReader is the consumer half of a stream. Elements are produced
// lazily: the producer blocks in Send until the consumer calls Recv, so
// iteration is driven entirely by the consumer.
type StreamReader struct {
	ch   <-chan streamItem
	done chan struct{}
	once sync.Once
}

// Recv returns the next element. It returns io.EOF when the stream is
// exhausted and the producer's error when the stream failed mid-way.
func (r *StreamReader) Recv() (any, error) {
	item, ok := <-r.ch
	if !ok {
		return nil, io.EOF
	}
	if item.err != nil {
		return nil, item.err
	}
	return item.value, nil
}

// Close releases the producer. Recv after Close drains nothing further.
func (r *StreamReader) Close() {
	r.once.Do(func() { close(r.done) })
}

// Collect drains the stream into a slice, closing it afterwards.
func (r *StreamReader) Collect() ([]any, error) {
	defer r.Close()
	var out []any
	for {
		v, err := r.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// StreamWriter is the producer half of a stream.
type StreamWriter struct {
	ch   chan<- streamItem
	done <-chan struct{}
	once sync.Once
}

// Send delivers one element, blocking until the consumer receives it, the
// consumer closes the stream, or ctx is cancelled.
func (w *StreamWriter) Send(ctx context.Context, value any) error {
	select {
	case w.ch <- streamItem{value: value}:
		return nil
	case <-w.done:
		return ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close terminates the stream. A non-nil err is surfaced to the consumer's
// next Recv; nil yields io.EOF. Close is idempotent.
func (w *StreamWriter) Close(err error) {
	w.once.Do(func() {
		if err != nil {
			select {
			case w.ch <- streamItem{err: err}:
			case <-w.done:
			}
		}
		close(w.ch)
	})
}

// Pipe creates a connected reader/writer pair. The channel is unbuffered so
// the producer suspends between elements.
func Pipe() (*StreamReader, *StreamWriter) {
	ch := make(chan streamItem)
	done := make(chan struct{})
	return &StreamReader{ch: ch, done: done}, &StreamWriter{ch: ch, done: done}
}
