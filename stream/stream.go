// Package stream implements the push-notification channel client. A Conn is
// an explicit connection-manager instance: created at session start, run for
// the session's lifetime, and disposed by canceling its context.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/taskboard/taskboard/task"
)

// Notification kinds delivered by the channel.
const (
	KindTaskCreated    = "task:created"
	KindTaskUpdated    = "task:updated"
	KindTaskDeleted    = "task:deleted"
	KindTasksRefreshed = "tasks:refreshed"
)

// Envelope is the wire frame for a push notification.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler consumes notifications in arrival order. TasksRefreshed also runs
// after every successful (re)connect, before any incremental event.
type Handler interface {
	TaskCreated(t task.Task)
	TaskUpdated(t task.Task)
	TaskDeleted(id string)
	TasksRefreshed(ctx context.Context) error
}

// TokenProvider supplies the bearer token for the connection handshake.
type TokenProvider interface {
	Token() string
}

// Conn manages one websocket connection to the notification channel,
// reconnecting with capped exponential backoff when it drops.
type Conn struct {
	url       string
	tokens    TokenProvider
	dialer    *websocket.Dialer
	logger    *slog.Logger
	sessionID string

	minBackoff time.Duration
	maxBackoff time.Duration
}

// New creates a connection manager for the given websocket URL.
func New(url string, tokens TokenProvider, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		url:        url,
		tokens:     tokens,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:     logger,
		sessionID:  uuid.NewString(),
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Run connects and consumes notifications until ctx is canceled, which is
// the only way it returns. Dropped connections are re-dialed with backoff.
func (c *Conn) Run(ctx context.Context, h Handler) error {
	backoff := c.minBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header := http.Header{}
		if tok := c.tokens.Token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
		header.Set("X-Session-ID", c.sessionID)

		conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
		if err != nil {
			if resp != nil {
				resp.Body.Close() //nolint:errcheck
			}
			c.logger.Warn("stream dial failed",
				slog.String("url", c.url),
				slog.Any("err", err),
				slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff *= 2; backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
			continue
		}
		backoff = c.minBackoff
		c.logger.Info("stream connected", slog.String("url", c.url))

		// Incremental events missed while disconnected are unrecoverable,
		// so every connect starts with a full resync.
		if err := h.TasksRefreshed(ctx); err != nil {
			c.logger.Error("resync after connect", slog.Any("err", err))
		}

		c.readLoop(ctx, conn, h)
		conn.Close() //nolint:errcheck
	}
}

// readLoop consumes frames until the connection drops or ctx is canceled.
func (c *Conn) readLoop(ctx context.Context, conn *websocket.Conn, h Handler) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close() //nolint:errcheck
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("stream read failed", slog.Any("err", err))
			}
			return
		}
		c.dispatch(ctx, data, h)
	}
}

// dispatch decodes one frame and applies it. Malformed frames are dropped:
// no store mutation can be derived from them safely, and they must never
// stop the loop.
func (c *Conn) dispatch(ctx context.Context, data []byte, h Handler) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("dropping malformed frame", slog.Any("err", err))
		return
	}

	switch env.Type {
	case KindTaskCreated, KindTaskUpdated:
		var t task.Task
		if err := json.Unmarshal(env.Payload, &t); err != nil || t.ID == "" {
			c.logger.Warn("dropping malformed task payload", slog.String("type", env.Type))
			return
		}
		if env.Type == KindTaskCreated {
			h.TaskCreated(t)
		} else {
			h.TaskUpdated(t)
		}
	case KindTaskDeleted:
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.ID == "" {
			c.logger.Warn("dropping malformed delete payload")
			return
		}
		h.TaskDeleted(p.ID)
	case KindTasksRefreshed:
		if err := h.TasksRefreshed(ctx); err != nil {
			c.logger.Error("refresh notification", slog.Any("err", err))
		}
	default:
		c.logger.Debug("ignoring unknown notification", slog.String("type", env.Type))
	}
}

// sleep waits for d or until ctx is canceled, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
