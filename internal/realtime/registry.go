package realtime

import "sort"

// Client is one live transport for one identity.
type Client interface {
	// ID is unique per transport, so two connections of the same user can be told apart.
	ID() string
	UserID() string
	Username() string
	// Send queues an encoded frame and reports whether it was accepted. It never blocks.
	Send(frame []byte) bool
	// Close tears the transport down; reason is sent to the peer with the close frame.
	Close(reason string)
}

// Registry maps a user to its single live connection; the last connect wins.
// It is owned by the Hub goroutine and is not safe for concurrent use.
type Registry struct {
	conns map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Client)}
}

// Register stores c as the connection of userID and returns the connection it superseded,
// if any. The superseded connection is not closed here.
func (r *Registry) Register(userID string, c Client) Client {
	prev, ok := r.conns[userID]
	r.conns[userID] = c
	if !ok || prev.ID() == c.ID() {
		return nil
	}
	return prev
}

func (r *Registry) Resolve(userID string) (Client, bool) {
	c, ok := r.conns[userID]
	return c, ok
}

// Remove deletes the mapping for userID. Removing an absent user is a no-op.
func (r *Registry) Remove(userID string) {
	delete(r.conns, userID)
}

// Current reports whether c is the connection currently registered for its user.
func (r *Registry) Current(c Client) bool {
	cur, ok := r.conns[c.UserID()]
	return ok && cur.ID() == c.ID()
}

func (r *Registry) Len() int {
	return len(r.conns)
}

// UserIDs returns the connected users in lexical order.
func (r *Registry) UserIDs() []string {
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Clients() []Client {
	out := make([]Client, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}
