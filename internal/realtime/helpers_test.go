package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"travel-together-api/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	id       string
	userID   string
	username string

	mu     sync.Mutex
	frames [][]byte
	closed bool
	reason string
	full   bool
}

func newFakeClient(id, userID string) *fakeClient {
	return &fakeClient{id: id, userID: userID, username: userID + "-name"}
}

func (f *fakeClient) ID() string       { return f.id }
func (f *fakeClient) UserID() string   { return f.userID }
func (f *fakeClient) Username() string { return f.username }

func (f *fakeClient) Send(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.full {
		return false
	}
	f.frames = append(f.frames, frame)
	return true
}

func (f *fakeClient) Close(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.reason = reason
	}
}

func (f *fakeClient) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeClient) closeReason() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reason
}

// received decodes every frame sent to the client so far.
func (f *fakeClient) received(t *testing.T) []Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, 0, len(f.frames))
	for _, raw := range f.frames {
		var fr Frame
		require.NoError(t, json.Unmarshal(raw, &fr))
		out = append(out, fr)
	}
	return out
}

func (f *fakeClient) raw() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func (f *fakeClient) ofType(t *testing.T, typ string) []Frame {
	t.Helper()
	var out []Frame
	for _, fr := range f.received(t) {
		if fr.Type == typ {
			out = append(out, fr)
		}
	}
	return out
}

// gateFunc adapts a function to Authorizer.
type gateFunc func(ctx context.Context, tripID, userID string) Authorization

func (g gateFunc) AuthorizeTripJoin(ctx context.Context, tripID, userID string) Authorization {
	return g(ctx, tripID, userID)
}

// creatorGate allows the creators listed in trips, denies everyone else and
// reports a missing trip for unknown ids.
func creatorGate(trips map[string]string) gateFunc {
	return func(_ context.Context, tripID, userID string) Authorization {
		creator, ok := trips[tripID]
		if !ok {
			return Authorization{Outcome: OutcomeTripNotFound}
		}
		if creator != userID {
			return Authorization{Outcome: OutcomeNotMember}
		}
		return Authorization{Allowed: true, Role: models.RoleOwner, Outcome: OutcomeAllowed}
	}
}

type recordedHistory struct {
	mu   sync.Mutex
	msgs []models.ChatMessage
}

func (r *recordedHistory) Record(msg models.ChatMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return true
}

func (r *recordedHistory) all() []models.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ChatMessage(nil), r.msgs...)
}

type testHub struct {
	*Hub
	history *recordedHistory
	cancel  context.CancelFunc
	stopped chan struct{}
}

func startHub(t *testing.T, gate Authorizer) *testHub {
	t.Helper()
	history := &recordedHistory{}
	hub := NewHub(Config{
		Gate:    gate,
		History: history,
		Metrics: NewMetrics(prometheus.NewRegistry()),
	})
	ctx, cancel := context.WithCancel(context.Background())
	th := &testHub{Hub: hub, history: history, cancel: cancel, stopped: make(chan struct{})}
	go func() {
		hub.Run(ctx)
		close(th.stopped)
	}()
	t.Cleanup(th.stop)
	return th
}

func (th *testHub) stop() {
	th.cancel()
	<-th.stopped
}

func (th *testHub) connect(t *testing.T, c Client) {
	t.Helper()
	require.NoError(t, th.Connect(context.Background(), c))
}

func (th *testHub) send(t *testing.T, c Client, frame any) {
	t.Helper()
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	th.Receive(c, data)
}

// members doubles as a barrier: once it returns, every frame handed to Receive before it
// has been fully processed.
func (th *testHub) members(t *testing.T, kind models.RoomKind, roomID string) []string {
	t.Helper()
	ids, err := th.RoomMembers(context.Background(), kind, roomID)
	require.NoError(t, err)
	return ids
}

func (th *testHub) waitMembers(t *testing.T, kind models.RoomKind, roomID string, want []string) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := th.members(t, kind, roomID)
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}
