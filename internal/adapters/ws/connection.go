package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/triagebooth/internal/adapters/mq/topic"
	service "github.com/okian/triagebooth/internal/app"
	"github.com/okian/triagebooth/internal/domain/model"
	"github.com/okian/triagebooth/internal/domain/types"
	"github.com/okian/triagebooth/pkg/logger"
	"github.com/okian/triagebooth/pkg/metrics"
)

const textUnknownType = "Unknown message type."

// connection is one client socket. Only readPump touches operator and msgKey.
type connection struct {
	id    string
	ws    *websocket.Conn
	sub   *topic.Subscription
	hub   *Hub
	ctx   context.Context
	since time.Time

	operator *model.Operator
	msgKey   string // dedupe key of the message being handled
	once     sync.Once
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.release(c)
		_ = c.ws.Close()
	})
}

// writePump drains the subscription onto the socket and keeps it alive.
func (c *connection) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.C():
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debug(c.ctx, "websocket write failed", logger.String("connId", c.id), logger.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug(c.ctx, "websocket ping failed", logger.String("connId", c.id), logger.Error(err))
				return
			}
		}
	}
}

// readPump reads client events until the socket fails or closes.
func (c *connection) readPump() {
	cfg := c.hub.cfg
	defer c.close()

	c.ws.SetReadLimit(cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn(c.ctx, "unexpected websocket close", logger.String("connId", c.id), logger.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		c.handle(msg)
	}
}

func (c *connection) handle(msg []byte) {
	c.hub.received.Add(1)
	metrics.RecordRelayMessage("in")

	env, err := types.Decode(msg)
	if err != nil {
		c.fail(err)
		return
	}
	if env.ID != "" {
		// Clients number messages independently, so ids are scoped to the sender.
		key := c.id + "/" + env.ID
		if c.hub.dedupe.SeenAndRecord(key) {
			metrics.RecordRelayDuplicate()
			c.hub.logger.Debug(c.ctx, "duplicate message dropped", logger.String("connId", c.id), logger.String("id", env.ID))
			return
		}
		c.msgKey = key
		defer func() { c.msgKey = "" }()
	}

	engine := c.hub.engine
	switch env.Type {
	case types.TypeRegisterPlayer, types.TypeStart:
		c.start(env)
	case types.TypeSetOperator:
		c.setOperator(env)
	case types.TypeScanVital:
		c.scan(env)
	case types.TypeSubmitDecision, types.TypeSubmitHumanDecision:
		var p types.DecisionPayload
		if err := env.Bind(&p); err != nil {
			c.fail(err)
			return
		}
		engine.Submit(c.ctx, p.Decision())
	case types.TypeResetGame, types.TypeResetSimulation:
		engine.Reset(c.ctx)
	case types.TypeResetLeaderboard:
		engine.ResetLeaderboard(c.ctx)
	default:
		c.hub.logger.Debug(c.ctx, "unknown message type", logger.String("connId", c.id), logger.String("type", env.Type))
		c.send(types.ErrorPayload{Text: textUnknownType, Code: types.CodeUnknownType})
	}
}

func (c *connection) start(env types.Envelope) {
	var p types.StartPayload
	if err := env.Bind(&p); err != nil {
		c.fail(err)
		return
	}

	name, mode := p.Operator()
	switch {
	case name != "" || mode != "":
		op := model.NewOperator(name, mode)
		c.operator = &op
	case c.operator != nil:
		name, mode = c.operator.Name, string(c.operator.Mode)
	}

	if _, err := c.hub.engine.StartSession(c.ctx, name, mode, p.ScenarioID); err != nil {
		c.fail(err)
	}
}

func (c *connection) setOperator(env types.Envelope) {
	var p types.OperatorPayload
	if err := env.Bind(&p); err != nil {
		c.fail(err)
		return
	}
	op := model.NewOperator(p.Name, p.Mode)
	c.operator = &op

	c.echo(env.Type, env.Data)
	c.hub.engine.SetOperator(c.ctx, p.Name, p.Mode)
}

func (c *connection) scan(env types.Envelope) {
	var p types.ScanPayload
	if err := env.Bind(&p); err != nil {
		c.fail(err)
		return
	}
	if p.Operator != nil {
		op := model.NewOperator(p.Operator.Name, p.Operator.Mode)
		c.operator = &op
	}

	data, err := mergeOperator(env.Data, c.operator)
	if err != nil {
		c.fail(err)
		return
	}
	c.echo(env.Type, data)

	if p.Operator != nil {
		c.hub.engine.SetOperator(c.ctx, p.Operator.Name, p.Operator.Mode)
	}
	if _, err := c.hub.engine.Scan(c.ctx, p.Raw()); err != nil {
		c.fail(err)
	}
}

// echo republishes an inbound event to every connection, the sender included.
func (c *connection) echo(eventType string, data json.RawMessage) {
	msg, err := types.Encode(eventType, data)
	if err != nil {
		c.fail(err)
		return
	}
	c.hub.topic.Publish(c.ctx, msg)
}

// fail reports err to this connection only. The failed message id is
// forgotten so the client may retry it.
func (c *connection) fail(err error) {
	if c.msgKey != "" {
		c.hub.dedupe.Forget(c.msgKey)
	}
	text, code := service.Describe(err)
	c.hub.logger.Debug(c.ctx, "client error",
		logger.String("connId", c.id),
		logger.String("code", code),
		logger.Error(err),
	)
	c.send(types.ErrorPayload{Text: text, Code: code})
}

func (c *connection) send(p types.ErrorPayload) {
	msg, err := types.Encode(types.TypeErrorMessage, p)
	if err != nil {
		return
	}
	if err := c.sub.Deliver(msg); err != nil {
		metrics.RecordErrorByComponent("ws", "deliver")
	}
}

// mergeOperator adds op to a scan payload that does not name an operator.
func mergeOperator(data json.RawMessage, op *model.Operator) (json.RawMessage, error) {
	if op == nil {
		return data, nil
	}

	fields := map[string]json.RawMessage{}
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
	}
	if _, ok := fields["operator"]; ok {
		return data, nil
	}

	raw, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	fields["operator"] = raw
	return json.Marshal(fields)
}
