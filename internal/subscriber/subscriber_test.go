package subscriber

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comunifi/shuttle/pkg/shuttle"
)

type fakeStream struct {
	events []*shuttle.HubEvent
	idx    int
	err    error
}

func (f *fakeStream) Recv(ctx context.Context) (*shuttle.HubEvent, error) {
	if f.idx >= len(f.events) {
		if f.err != nil {
			return nil, f.err
		}
		return nil, errors.New("EOF")
	}
	ev := f.events[f.idx]
	f.idx++
	return ev, nil
}

func (f *fakeStream) Close() error { return nil }

type fakeHubClient struct {
	ready  bool
	stream *fakeStream
}

func (f *fakeHubClient) Ready(ctx context.Context, timeout time.Duration) bool { return f.ready }

func (f *fakeHubClient) Subscribe(ctx context.Context, req shuttle.SubscribeRequest) (shuttle.EventStream, error) {
	return f.stream, nil
}

func (f *fakeHubClient) GetAllMessagesByFid(ctx context.Context, req shuttle.FidPageRequest) (*shuttle.MessagesPage, error) {
	return nil, nil
}

type recordingObserver struct {
	mu        sync.Mutex
	events    []*shuttle.HubEvent
	errs      []error
	stopped   []bool
	failOnID  uint64
}

func (o *recordingObserver) OnEvent(ctx context.Context, ev *shuttle.HubEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
	if o.failOnID != 0 && ev.ID == o.failOnID {
		return errors.New("observer rejected event")
	}
	return nil
}

func (o *recordingObserver) OnError(err error, stopped bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
	o.stopped = append(o.stopped, stopped)
}

func TestSubscriber_DeliversFramesInOrder(t *testing.T) {
	events := []*shuttle.HubEvent{{ID: 100}, {ID: 101}, {ID: 102}}
	client := &fakeHubClient{ready: true, stream: &fakeStream{events: events}}
	obs := &recordingObserver{}
	sub := New(client, obs)

	err := sub.Start(context.Background(), nil)
	require.Error(t, err) // stream terminates with EOF once frames are exhausted

	require.Len(t, obs.events, 3)
	assert.Equal(t, uint64(100), obs.events[0].ID)
	assert.Equal(t, uint64(101), obs.events[1].ID)
	assert.Equal(t, uint64(102), obs.events[2].ID)
	assert.Equal(t, StateStopped, sub.State())
	require.Len(t, obs.stopped, 1)
	assert.True(t, obs.stopped[0])
}

func TestSubscriber_ObserverErrorHaltsStreamBeforeLaterFrames(t *testing.T) {
	events := []*shuttle.HubEvent{{ID: 100}, {ID: 101}, {ID: 102}}
	client := &fakeHubClient{ready: true, stream: &fakeStream{events: events}}
	obs := &recordingObserver{failOnID: 101}
	sub := New(client, obs)

	err := sub.Start(context.Background(), nil)
	require.Error(t, err)

	// 102 must never reach the observer: the stream halts on 101's error
	// instead of advancing past it.
	require.Len(t, obs.events, 2)
	assert.Equal(t, uint64(100), obs.events[0].ID)
	assert.Equal(t, uint64(101), obs.events[1].ID)
	assert.Equal(t, StateStopped, sub.State())
}

func TestSubscriber_TransportNotReady(t *testing.T) {
	client := &fakeHubClient{ready: false}
	obs := &recordingObserver{}
	sub := New(client, obs)

	err := sub.Start(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, shuttle.ErrTransportUnavailable)
	assert.Equal(t, StateStopped, sub.State())
}
