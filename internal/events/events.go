// Package events implements the fire-and-forget structured event emitter
// used by the Sync Runner and Search Pipeline to report progress to
// streaming clients without ever blocking the caller on a slow or absent
// reader.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Kind classifies the lifecycle stage an Event describes. Operations emit
// exactly one of these per phase; GenerateAnswer additionally emits
// KindProgress once per streamed answer token.
type Kind string

const (
	KindStarted   Kind = "started"
	KindProgress  Kind = "progress"
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
	KindSkipped   Kind = "skipped"
)

// Event is the structured payload carried over the event channel. Name
// identifies the operation or stage ("query_expansion", "retrieval",
// "operation_skipped", ...); Payload is operation-specific and must already
// be safe to serialize directly to JSON.
type Event struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"ts"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Payload   any       `json:"payload,omitempty"`
}

var (
	meterOnce    sync.Once
	droppedTotal metric.Int64Counter
)

func droppedCounter() metric.Int64Counter {
	meterOnce.Do(func() {
		meter := otel.Meter("github.com/airweave-core/airweave-core/internal/events")
		c, err := meter.Int64Counter("events_dropped_total",
			metric.WithDescription("events dropped because the subscriber's channel was full"))
		if err != nil {
			slog.Error("create events_dropped_total counter", "error", err)
			return
		}
		droppedTotal = c
	})
	return droppedTotal
}

// Emitter fans a single request's events out to one subscriber over a
// bounded channel. Emit never blocks: a full channel drops the event and
// increments the dropped-event counter rather than slowing down the
// operation that's trying to report progress. The zero value is not
// usable; construct with New.
type Emitter struct {
	requestID string
	ch        chan Event
	closeOnce sync.Once
}

// New creates an Emitter for one request, buffering up to bufSize events
// before it starts dropping. A bufSize of 0 falls back to a sane default.
func New(requestID string, bufSize int) *Emitter {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Emitter{
		requestID: requestID,
		ch:        make(chan Event, bufSize),
	}
}

// Emit records one event. It returns immediately whether or not the event
// was actually delivered; callers must not treat a dropped event as an
// error. kind and name identify the operation/stage, payload is the
// operation-specific body to attach.
func (e *Emitter) Emit(kind Kind, name string, payload any) {
	if e == nil {
		return
	}

	evt := Event{
		RequestID: e.requestID,
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Name:      name,
		Payload:   payload,
	}

	select {
	case e.ch <- evt:
	default:
		if c := droppedCounter(); c != nil {
			c.Add(context.Background(), 1)
		}
		slog.Warn("dropping event, subscriber channel full",
			"request_id", e.requestID, "kind", kind, "name", name)
	}
}

// Started is shorthand for Emit(KindStarted, name, payload).
func (e *Emitter) Started(name string, payload any) { e.Emit(KindStarted, name, payload) }

// Progress is shorthand for Emit(KindProgress, name, payload).
func (e *Emitter) Progress(name string, payload any) { e.Emit(KindProgress, name, payload) }

// Completed is shorthand for Emit(KindCompleted, name, payload).
func (e *Emitter) Completed(name string, payload any) { e.Emit(KindCompleted, name, payload) }

// Failed is shorthand for Emit(KindFailed, name, payload).
func (e *Emitter) Failed(name string, payload any) { e.Emit(KindFailed, name, payload) }

// Skipped reports that an operation was excluded from the graph for this
// request, per the Search Pipeline's inclusion rules. Payload typically
// carries the reason (e.g. "no vector-backed source connections").
func (e *Emitter) Skipped(name string, payload any) { e.Emit(KindSkipped, name, payload) }

// Events returns the channel subscribers read from. It is closed once
// Close is called; callers should range over it until closed rather than
// polling.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Close shuts down the event channel. Safe to call multiple times and
// from a different goroutine than the one calling Emit, but Emit must not
// be called concurrently with or after Close.
func (e *Emitter) Close() {
	e.closeOnce.Do(func() {
		close(e.ch)
	})
}
