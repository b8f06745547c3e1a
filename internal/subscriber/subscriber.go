// Package subscriber implements the resumable hub subscription: a small
// state machine that opens a server-streaming subscription, emits one event
// per frame to a registered observer, and reports terminal errors.
package subscriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/comunifi/shuttle/pkg/shuttle"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateStopped
)

const readyTimeout = 500 * time.Millisecond

// Observer receives frames and the terminal error/stop notification. A
// non-nil OnEvent error is treated as fatal: the stream halts on that frame
// rather than continuing on to the next one, so a failed event is never
// skipped past.
type Observer interface {
	OnEvent(ctx context.Context, ev *shuttle.HubEvent) error
	OnError(err error, stopped bool)
}

// Subscriber drives one open stream against a shuttle.HubClient.
type Subscriber struct {
	client shuttle.HubClient

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	observer Observer
}

func New(client shuttle.HubClient, observer Observer) *Subscriber {
	return &Subscriber{client: client, state: StateIdle, observer: observer}
}

func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the subscription and drives it until the stream ends or
// errors. It blocks for the lifetime of the stream — callers run it in its
// own goroutine/task.
func (s *Subscriber) Start(ctx context.Context, fromEventID *uint64, eventTypes ...shuttle.HubEventType) error {
	s.setState(StateConnecting)

	if !s.client.Ready(ctx, readyTimeout) {
		err := fmt.Errorf("%w: hub transport did not become ready within %s", shuttle.ErrTransportUnavailable, readyTimeout)
		s.finish(err)
		return err
	}

	if len(eventTypes) == 0 {
		eventTypes = shuttle.DefaultEventTypes()
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	stream, err := s.client.Subscribe(streamCtx, shuttle.SubscribeRequest{EventTypes: eventTypes, FromID: fromEventID})
	if err != nil {
		s.finish(err)
		return err
	}
	defer stream.Close()

	s.setState(StateStreaming)

	for {
		ev, err := stream.Recv(streamCtx)
		if err != nil {
			s.finish(err)
			return err
		}

		// Delivery to the observer is synchronous: a slow observer exerts
		// backpressure on the stream rather than this loop buffering frames.
		// A fatal event error halts the stream here rather than advancing to
		// the next frame, so the checkpoint is never saved past a failure.
		if err := s.observer.OnEvent(streamCtx, ev); err != nil {
			s.finish(err)
			return err
		}
	}
}

// Stop cancels the outstanding stream receive. Subsequent frames, if any
// are already in flight, are discarded.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Destroy stops the subscriber if needed.
func (s *Subscriber) Destroy() {
	s.Stop()
}

func (s *Subscriber) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Subscriber) finish(err error) {
	s.setState(StateStopped)
	s.observer.OnError(err, true)
}
