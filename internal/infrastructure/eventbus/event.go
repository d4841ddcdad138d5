// Package eventbus is the in-process delivery runtime for domain events:
// named subscriptions, count/time batching, daily timers, at-least-once
// retry and optional per-subscription de-duplication.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by Publish and Subscribe once Stop has been called.
var ErrClosed = errors.New("eventbus: closed")

// Event is one published message. Attempt is 1 on first delivery and grows
// with every retry of the same subscription.
type Event struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"ts"`
	Attempt   int             `json:"-"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no payload", e.Name)
	}
	return json.Unmarshal(e.Data, v)
}

type Handler func(ctx context.Context, ev Event) error

type BatchHandler func(ctx context.Context, evs []Event) error

// Forwarder mirrors published events to an external channel. Forward errors
// are logged and never fail Publish.
type Forwarder interface {
	Forward(ctx context.Context, ev Event) error
}

// IdempotencyStore remembers which (subscription, event id) pairs completed.
type IdempotencyStore interface {
	IsProcessed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Recorder receives delivery outcomes, typically Prometheus counters.
type Recorder interface {
	Delivered(subscription string, events int)
	Failed(subscription string)
	DeadLettered(subscription string, events int)
	Duplicate(subscription string)
	BatchFlushed(subscription string, size int, trigger string)
}

type nopRecorder struct{}

func (nopRecorder) Delivered(string, int)            {}
func (nopRecorder) Failed(string)                    {}
func (nopRecorder) DeadLettered(string, int)         {}
func (nopRecorder) Duplicate(string)                 {}
func (nopRecorder) BatchFlushed(string, int, string) {}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The runtime dead-letters the
// event on the first such failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
