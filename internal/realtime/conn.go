package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultPingInterval   = 30 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultWriteWait      = 5 * time.Second
	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 64
)

// ConnConfig tunes a websocket connection. Zero values fall back to defaults.
type ConnConfig struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func (c ConnConfig) withDefaults() ConnConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = c.PingInterval * 2
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	return c
}

// FrameSink consumes what a connection reads. *Hub implements it.
type FrameSink interface {
	Receive(c Client, data []byte)
	Disconnect(c Client)
}

// Conn is a Client backed by a gorilla websocket. Outbound frames go through a bounded
// queue drained by a single writer goroutine, so Send never blocks the hub.
type Conn struct {
	id       string
	userID   string
	username string

	ws  *websocket.Conn
	cfg ConnConfig

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	reason    string

	logger zerolog.Logger
}

func NewConn(ws *websocket.Conn, userID, username string, cfg ConnConfig, logger *zerolog.Logger) *Conn {
	cfg = cfg.withDefaults()
	id := uuid.NewString()
	return &Conn{
		id:       id,
		userID:   userID,
		username: username,
		ws:       ws,
		cfg:      cfg,
		send:     make(chan []byte, cfg.SendBuffer),
		done:     make(chan struct{}),
		logger: logger.With().
			Str("component", "conn").
			Str("connID", id).
			Str("userID", userID).
			Logger(),
	}
}

func (c *Conn) ID() string       { return c.id }
func (c *Conn) UserID() string   { return c.userID }
func (c *Conn) Username() string { return c.username }

func (c *Conn) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Conn) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// Serve pumps frames between the websocket and sink until either side gives up.
// It blocks until the connection is fully torn down.
func (c *Conn) Serve(sink FrameSink) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()

	err := c.readPump(sink)
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.logger.Debug().Err(err).Msg("connection closed by peer")
	case errors.Is(err, websocket.ErrCloseSent), errors.Is(err, errLocalClose):
		c.logger.Debug().Msg("connection closed locally")
	default:
		c.logger.Warn().Err(err).Msg("connection lost")
	}

	c.Close("")
	sink.Disconnect(c)
	wg.Wait()
	_ = c.ws.Close()
}

var errLocalClose = errors.New("connection closed locally")

func (c *Conn) readPump(sink FrameSink) error {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		return err
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return errLocalClose
			default:
				return err
			}
		}
		sink.Receive(c, data)
	}
}

// writePump is the only goroutine writing to the websocket. When it returns the underlying
// network connection is closed, which unblocks readPump.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, c.reason)
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteWait))
			return
		case frame := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Error().Err(err).Msg("failed to set websocket write deadline")
				c.Close("")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn().Err(err).Msg("failed to write frame")
				c.Close("")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Warn().Err(err).Msg("failed to send ping")
				c.Close("")
				return
			}
		}
	}
}
