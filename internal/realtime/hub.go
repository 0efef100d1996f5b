package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"travel-together-api/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultAuthorizeTimeout = 3 * time.Second

// Close reasons sent to clients whose connection the hub ends.
const (
	CloseReasonSuperseded = "superseded"
	CloseReasonShutdown   = "server shutting down"
)

var ErrHubStopped = errors.New("realtime hub stopped")

// HistoryRecorder receives chat messages for durable storage. Record must not block.
type HistoryRecorder interface {
	Record(msg models.ChatMessage) bool
}

type Config struct {
	Gate             Authorizer
	History          HistoryRecorder
	Metrics          *Metrics
	Logger           *zerolog.Logger
	AuthorizeTimeout time.Duration
}

type inboundFrame struct {
	client Client
	data   []byte
}

type joinResult struct {
	client Client
	tripID string
	seq    uint64
	auth   Authorization
}

type joinKey struct {
	connID string
	tripID string
}

// pendingJoin is a trip authorization in flight for one connection and trip.
type pendingJoin struct {
	seq    uint64
	cancel context.CancelFunc
}

// Hub owns the connection registry and the room indexes. Every mutation and every fan-out
// runs on the goroutine executing Run, so frames of one connection are handled in the order
// they were read. Other goroutines talk to the hub over channels only.
type Hub struct {
	gate             Authorizer
	history          HistoryRecorder
	metrics          *Metrics
	logger           zerolog.Logger
	authorizeTimeout time.Duration

	registry *Registry
	rooms    *Rooms

	// at most one authorization per connection and trip; owned by the Run goroutine
	pendingJoins map[joinKey]pendingJoin
	joinSeq      uint64

	connect    chan Client
	disconnect chan Client
	inbound    chan inboundFrame
	joins      chan joinResult
	queries    chan func()
	done       chan struct{}

	// authorizations in flight
	pending sync.WaitGroup

	newID func() string
	now   func() time.Time
}

func NewHub(cfg Config) *Hub {
	timeout := cfg.AuthorizeTimeout
	if timeout <= 0 {
		timeout = defaultAuthorizeTimeout
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Hub{
		gate:             cfg.Gate,
		history:          cfg.History,
		metrics:          cfg.Metrics,
		logger:           logger.With().Str("component", "hub").Logger(),
		authorizeTimeout: timeout,
		registry:         NewRegistry(),
		rooms:            NewRooms(),
		pendingJoins:     make(map[joinKey]pendingJoin),
		connect:          make(chan Client),
		disconnect:       make(chan Client),
		inbound:          make(chan inboundFrame),
		joins:            make(chan joinResult),
		queries:          make(chan func()),
		done:             make(chan struct{}),
		newID:            uuid.NewString,
		now:              time.Now,
	}
}

// Run processes hub events until ctx is done. On exit every registered connection is closed.
// Run must be called exactly once.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info().Msg("hub started")
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.connect:
			h.handleConnect(c)
		case c := <-h.disconnect:
			h.handleDisconnect(c)
		case in := <-h.inbound:
			h.route(ctx, in.client, in.data)
		case res := <-h.joins:
			h.commitTripJoin(res)
		case q := <-h.queries:
			q()
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	clients := h.registry.Clients()
	for _, c := range clients {
		c.Close(CloseReasonShutdown)
	}
	h.pending.Wait()
	h.logger.Info().Int("connections", len(clients)).Msg("hub stopped")
}

// Connect registers c as the live connection of its user and greets it.
func (h *Hub) Connect(ctx context.Context, c Client) error {
	select {
	case h.connect <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect reports that c has closed.
func (h *Hub) Disconnect(c Client) {
	select {
	case h.disconnect <- c:
	case <-h.done:
	}
}

// Receive hands one inbound frame of c to the hub.
func (h *Hub) Receive(c Client, data []byte) {
	select {
	case h.inbound <- inboundFrame{client: c, data: data}:
	case <-h.done:
	}
}

func (h *Hub) handleConnect(c Client) {
	userID := c.UserID()
	logger := h.logger.With().Str("userID", userID).Str("connID", c.ID()).Logger()

	if prev := h.registry.Register(userID, c); prev != nil {
		// trip access was granted to the previous connection only
		h.cancelPendingJoins(prev)
		left := h.rooms.RemoveUserFromAllRooms(userID)
		prev.Close(CloseReasonSuperseded)
		logger.Info().
			Str("supersededConnID", prev.ID()).
			Int("roomsLeft", left).
			Msg("connection superseded")
	} else {
		logger.Debug().Msg("connection registered")
	}
	h.metrics.observeState(h.registry.Len(), h.rooms)
	h.deliver(c, Frame{Type: TypeConnectionStatus, Status: StatusConnected})
}

func (h *Hub) handleDisconnect(c Client) {
	logger := h.logger.With().Str("userID", c.UserID()).Str("connID", c.ID()).Logger()
	if !h.registry.Current(c) {
		logger.Debug().Msg("closed connection was not registered")
		return
	}
	h.registry.Remove(c.UserID())
	h.cancelPendingJoins(c)
	left := h.rooms.RemoveUserFromAllRooms(c.UserID())
	h.metrics.observeState(h.registry.Len(), h.rooms)
	logger.Debug().Int("roomsLeft", left).Msg("connection removed")
}

// startTripJoin launches the membership check for c unless one for the same trip is
// already running on this connection.
func (h *Hub) startTripJoin(ctx context.Context, c Client, tripID string) {
	key := joinKey{connID: c.ID(), tripID: tripID}
	if _, ok := h.pendingJoins[key]; ok {
		h.logger.Debug().
			Str("userID", c.UserID()).
			Str("tripID", tripID).
			Msg("trip join already pending")
		return
	}

	h.joinSeq++
	ctx, cancel := context.WithTimeout(ctx, h.authorizeTimeout)
	h.pendingJoins[key] = pendingJoin{seq: h.joinSeq, cancel: cancel}
	h.pending.Add(1)
	go h.authorize(ctx, c, tripID, h.joinSeq)
}

// cancelTripJoin abandons the pending membership check of c for tripID, if any.
func (h *Hub) cancelTripJoin(c Client, tripID string) {
	key := joinKey{connID: c.ID(), tripID: tripID}
	if p, ok := h.pendingJoins[key]; ok {
		p.cancel()
		delete(h.pendingJoins, key)
	}
}

func (h *Hub) cancelPendingJoins(c Client) {
	for key, p := range h.pendingJoins {
		if key.connID == c.ID() {
			p.cancel()
			delete(h.pendingJoins, key)
		}
	}
}

// authorize runs the trip membership check off the hub goroutine and posts the result back.
func (h *Hub) authorize(ctx context.Context, c Client, tripID string, seq uint64) {
	defer h.pending.Done()

	auth := h.gate.AuthorizeTripJoin(ctx, tripID, c.UserID())

	select {
	case h.joins <- joinResult{client: c, tripID: tripID, seq: seq, auth: auth}:
	case <-h.done:
	}
}

func (h *Hub) commitTripJoin(res joinResult) {
	c := res.client
	logger := h.logger.With().
		Str("userID", c.UserID()).
		Str("connID", c.ID()).
		Str("tripID", res.tripID).
		Logger()

	// the connection may have closed or been superseded while the lookup ran
	if !h.registry.Current(c) {
		h.metrics.authorization("stale")
		logger.Debug().Msg("dropping trip join of a connection that is gone")
		return
	}
	// or the client left the trip before the answer came back
	key := joinKey{connID: c.ID(), tripID: res.tripID}
	p, ok := h.pendingJoins[key]
	if !ok || p.seq != res.seq {
		h.metrics.authorization("cancelled")
		logger.Debug().Msg("dropping cancelled trip join")
		return
	}
	p.cancel()
	delete(h.pendingJoins, key)
	h.metrics.authorization(string(res.auth.Outcome))

	if !res.auth.Allowed {
		logger.Info().Str("outcome", string(res.auth.Outcome)).Msg("trip join denied")
		h.reject(c, string(res.auth.Outcome), res.auth.Reason())
		return
	}

	h.rooms.Trips.Join(res.tripID, c.UserID())
	h.metrics.observeState(h.registry.Len(), h.rooms)
	logger.Debug().Str("role", string(res.auth.Role)).Msg("joined trip room")
	h.deliver(c, Frame{
		Type:   TypeJoinTrip,
		TripID: res.tripID,
		Status: StatusJoined,
		Role:   string(res.auth.Role),
	})
}

// deliver encodes f and sends it to c alone.
func (h *Hub) deliver(c Client, f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		h.logger.Error().Err(err).Str("type", f.Type).Msg("failed to encode frame")
		return
	}
	h.send(c, payload)
}

// broadcast sends payload to every listed user that has a live connection. Unreachable users
// and failing transports are skipped without affecting the other recipients.
func (h *Hub) broadcast(userIDs []string, payload []byte) int {
	delivered := 0
	for _, id := range userIDs {
		c, ok := h.registry.Resolve(id)
		if !ok {
			h.metrics.delivery("unreachable")
			continue
		}
		if h.send(c, payload) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) send(c Client, payload []byte) bool {
	if !c.Send(payload) {
		h.metrics.delivery("dropped")
		h.logger.Warn().
			Str("userID", c.UserID()).
			Str("connID", c.ID()).
			Msg("send queue unavailable, frame dropped")
		return false
	}
	h.metrics.delivery("delivered")
	return true
}

func (h *Hub) reject(c Client, code, message string) {
	h.metrics.frameError(code)
	h.deliver(c, errorFrame(message))
}

// do runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	q := func() {
		fn()
		close(finished)
	}
	select {
	case h.queries <- q:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// OnlineUsers returns every user with a live connection.
func (h *Hub) OnlineUsers(ctx context.Context) ([]string, error) {
	var ids []string
	err := h.do(ctx, func() {
		ids = h.registry.UserIDs()
	})
	return ids, err
}

// RoomMembers returns the current members of a room.
func (h *Hub) RoomMembers(ctx context.Context, kind models.RoomKind, roomID string) ([]string, error) {
	var ids []string
	err := h.do(ctx, func() {
		ids = h.rooms.Index(kind).MembersOf(roomID)
	})
	return ids, err
}

// TripPresence returns the members of a trip room that currently have a live connection.
func (h *Hub) TripPresence(ctx context.Context, tripID string) ([]string, error) {
	ids := []string{}
	err := h.do(ctx, func() {
		for _, id := range h.rooms.Trips.MembersOf(tripID) {
			if _, ok := h.registry.Resolve(id); ok {
				ids = append(ids, id)
			}
		}
	})
	return ids, err
}
