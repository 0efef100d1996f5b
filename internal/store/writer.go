package store

import (
	"context"
	"time"

	"travel-together-api/internal/models"

	"github.com/rs/zerolog"
)

const (
	defaultWriterBuffer = 256
	appendTimeout       = 5 * time.Second
	drainTimeout        = 2 * time.Second
)

// Appender is the write side of the chat history.
type Appender interface {
	Append(ctx context.Context, msg *models.ChatMessage) error
}

// HistoryWriter appends chat messages from a single goroutine so callers never block on the
// database. Messages are written in the order they were recorded; when the queue is full
// new messages are dropped.
type HistoryWriter struct {
	history Appender
	queue   chan models.ChatMessage
	logger  zerolog.Logger
}

func NewHistoryWriter(history Appender, buffer int, logger *zerolog.Logger) *HistoryWriter {
	if buffer <= 0 {
		buffer = defaultWriterBuffer
	}
	return &HistoryWriter{
		history: history,
		queue:   make(chan models.ChatMessage, buffer),
		logger:  logger.With().Str("component", "history-writer").Logger(),
	}
}

// Record queues msg for persistence and reports whether it was accepted.
func (w *HistoryWriter) Record(msg models.ChatMessage) bool {
	select {
	case w.queue <- msg:
		return true
	default:
		w.logger.Warn().
			Str("roomKind", string(msg.RoomKind)).
			Str("roomID", msg.RoomID).
			Msg("history queue full, message not persisted")
		return false
	}
}

// Run writes queued messages until ctx is done, then makes a bounded attempt to flush the rest.
func (w *HistoryWriter) Run(ctx context.Context) {
	for {
		select {
		case msg := <-w.queue:
			w.write(ctx, msg)
		case <-ctx.Done():
			w.drain()
			return
		}
	}
}

func (w *HistoryWriter) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case msg := <-w.queue:
			w.write(ctx, msg)
		default:
			return
		}
	}
}

func (w *HistoryWriter) write(ctx context.Context, msg models.ChatMessage) {
	ctx, cancel := context.WithTimeout(ctx, appendTimeout)
	defer cancel()
	if err := w.history.Append(ctx, &msg); err != nil {
		w.logger.Error().Err(err).
			Str("roomKind", string(msg.RoomKind)).
			Str("roomID", msg.RoomID).
			Msg("failed to persist chat message")
	}
}
