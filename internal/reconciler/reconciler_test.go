package reconciler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comunifi/shuttle/pkg/shuttle"
)

type pagedHubClient struct {
	pages [][]*shuttle.HubMessage
}

func (c *pagedHubClient) Ready(ctx context.Context, timeout time.Duration) bool { return true }

func (c *pagedHubClient) Subscribe(ctx context.Context, req shuttle.SubscribeRequest) (shuttle.EventStream, error) {
	return nil, nil
}

func (c *pagedHubClient) GetAllMessagesByFid(ctx context.Context, req shuttle.FidPageRequest) (*shuttle.MessagesPage, error) {
	idx := 0
	if len(req.PageToken) == 1 {
		idx = int(req.PageToken[0])
	}
	if idx >= len(c.pages) {
		return &shuttle.MessagesPage{}, nil
	}

	next := []byte{}
	if idx+1 < len(c.pages) {
		next = []byte{byte(idx + 1)}
	}
	return &shuttle.MessagesPage{Messages: c.pages[idx], NextPageToken: next}, nil
}

type fakeStoreReader struct {
	stored map[string]shuttle.RowLifecycle
}

func (s *fakeStoreReader) FindByHashes(ctx context.Context, fid uint64, typ shuttle.MessageType, hashes [][]byte) (map[string]shuttle.RowLifecycle, error) {
	out := map[string]shuttle.RowLifecycle{}
	for _, h := range hashes {
		if lc, ok := s.stored[string(h)]; ok {
			out[string(h)] = lc
		}
	}
	return out, nil
}

type countingObserver struct {
	total   int
	missing int
}

func (o *countingObserver) OnReconcileMessage(ctx context.Context, msg *shuttle.HubMessage, missingInDb, prunedInDb, revokedInDb bool) error {
	o.total++
	if missingInDb {
		o.missing++
	}
	return nil
}

func TestReconciler_PagesAndClassifiesMissing(t *testing.T) {
	const total = 3001
	const stored = 1500

	page1 := make([]*shuttle.HubMessage, 0, 3000)
	page2 := make([]*shuttle.HubMessage, 0, 1)
	storedHashes := map[string]shuttle.RowLifecycle{}

	for i := 0; i < total; i++ {
		hash := []byte(fmt.Sprintf("hash-%d", i))
		msg := &shuttle.HubMessage{Hash: hash}
		if i < 3000 {
			page1 = append(page1, msg)
		} else {
			page2 = append(page2, msg)
		}
		if i < stored {
			storedHashes[string(hash)] = shuttle.RowLifecycle{}
		}
	}

	client := &pagedHubClient{pages: [][]*shuttle.HubMessage{page1, page2}}
	store := &fakeStoreReader{stored: storedHashes}
	obs := &countingObserver{}

	r := New(store, client, obs)
	err := r.ReconcileFid(context.Background(), 1, []shuttle.MessageType{shuttle.MessageTypeCastAdd})
	require.NoError(t, err)

	assert.Equal(t, total, obs.total)
	assert.Equal(t, total-stored, obs.missing)
}
