package sink

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/clintpurser/frankahw/realtime"
)

// Record is the line written for every delivered message.
type Record[T any] struct {
	Session string    `json:"session"`
	Channel string    `json:"channel"`
	Seq     uint64    `json:"seq"`
	Stamp   time.Time `json:"stamp"`
	Payload T         `json:"payload"`
}

// JSONLines writes each message as one JSON object per line.
type JSONLines[T any] struct {
	session string
	channel string

	mu  sync.Mutex
	enc *json.Encoder
	w   io.Writer
}

// NewJSONLines returns a sink writing channel's messages to w. Every line carries a session
// ID unique to this sink, so restarts can be told apart in one file.
func NewJSONLines[T any](channel string, w io.Writer) *JSONLines[T] {
	return &JSONLines[T]{
		session: uuid.NewString(),
		channel: channel,
		enc:     json.NewEncoder(w),
		w:       w,
	}
}

// Session returns the session ID stamped on every line.
func (j *JSONLines[T]) Session() string {
	return j.session
}

// Handle implements realtime.Handler.
func (j *JSONLines[T]) Handle(_ context.Context, msg realtime.Message[T]) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec := Record[T]{
		Session: j.session,
		Channel: j.channel,
		Seq:     msg.Seq,
		Stamp:   msg.Stamp,
		Payload: msg.Payload,
	}
	if err := j.enc.Encode(&rec); err != nil {
		return errors.Wrapf(err, "failed to write %s message %d", j.channel, msg.Seq)
	}
	return nil
}

// Close closes the underlying writer if it is closable.
func (j *JSONLines[T]) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if c, ok := j.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewRotatingFile returns a size-rotated log file for telemetry lines.
func NewRotatingFile(path string, maxSizeMB, maxBackups int) io.WriteCloser {
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
}
