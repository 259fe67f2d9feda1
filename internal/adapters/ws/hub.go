// Package ws is the broadcast relay: one websocket per booth screen or phone,
// all subscribed to the same topic.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/okian/triagebooth/internal/adapters/mq/topic"
	"github.com/okian/triagebooth/internal/domain/dedupe"
	"github.com/okian/triagebooth/internal/domain/model"
	"github.com/okian/triagebooth/internal/domain/types"
	"github.com/okian/triagebooth/pkg/logger"
	"github.com/okian/triagebooth/pkg/metrics"
)

// Engine is the part of the session engine the relay drives.
type Engine interface {
	SetOperator(ctx context.Context, name, mode string) model.Operator
	StartSession(ctx context.Context, name, mode, scenarioID string) (*model.Session, error)
	Scan(ctx context.Context, raw string) (types.VitalScannedPayload, error)
	Submit(ctx context.Context, d model.Decision) (*model.Result, bool)
	Reset(ctx context.Context)
	ResetLeaderboard(ctx context.Context)
	Sync(ctx context.Context, deliver func(msg []byte) error) error
}

// Hub upgrades connections and relays their events.
type Hub struct {
	engine   Engine
	topic    *topic.Topic
	upgrader websocket.Upgrader
	cfg      Config
	dedupe   dedupe.Deduper
	logger   logger.Logger

	active   atomic.Int64
	accepted atomic.Int64
	received atomic.Int64
}

// NewHub creates a relay over engine and t. The engine must publish to t.
func NewHub(engine Engine, t *topic.Topic, opts ...Option) *Hub {
	h := &Hub{
		engine: engine,
		topic:  t,
		cfg:    DefaultConfig(),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.dedupe == nil {
		h.dedupe = dedupe.New()
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  h.cfg.ReadBufferSize,
		WriteBufferSize: h.cfg.WriteBufferSize,
		CheckOrigin:     h.cfg.CheckOrigin,
	}
	return h
}

// ServeHTTP upgrades the request and starts the connection pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.topic.IsClosed() {
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		metrics.RecordErrorByComponent("ws", "upgrade")
		return
	}

	c := &connection{
		id:    uuid.NewString(),
		ws:    ws,
		hub:   h,
		ctx:   context.Background(),
		since: time.Now(),
	}

	// Subscribing inside Sync puts the snapshot ahead of any later event.
	err = h.engine.Sync(c.ctx, func(msg []byte) error {
		sub, err := h.topic.Subscribe(c.id)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", c.id, err)
		}
		c.sub = sub
		return sub.Deliver(msg)
	})
	if err != nil {
		h.logger.Error(c.ctx, "websocket sync failed", logger.String("connId", c.id), logger.Error(err))
		metrics.RecordErrorByComponent("ws", "sync")
		if c.sub != nil {
			h.topic.Unsubscribe(c.sub)
		}
		_ = ws.Close()
		return
	}

	h.accepted.Add(1)
	metrics.UpdateConnections(int(h.active.Add(1)))
	h.logger.Info(c.ctx, "websocket connected",
		logger.String("connId", c.id),
		logger.String("remote", r.RemoteAddr),
	)

	go c.writePump()
	go c.readPump()
}

// Close evicts every connection.
func (h *Hub) Close() error {
	return h.topic.Close()
}

// Stats returns relay counters.
func (h *Hub) Stats() map[string]interface{} {
	return map[string]interface{}{
		"activeConnections":   h.active.Load(),
		"acceptedConnections": h.accepted.Load(),
		"messagesReceived":    h.received.Load(),
		"subscribers":         h.topic.Len(),
		"published":           h.topic.Published(),
		"dropped":             h.topic.Dropped(),
		"dedupeWindow":        h.dedupe.Size(),
		"pingInterval":        h.cfg.PingInterval.String(),
	}
}

func (h *Hub) release(c *connection) {
	h.topic.Unsubscribe(c.sub)
	metrics.UpdateConnections(int(h.active.Add(-1)))
	h.logger.Info(c.ctx, "websocket disconnected",
		logger.String("connId", c.id),
		logger.Duration("connected", time.Since(c.since)),
	)
}
