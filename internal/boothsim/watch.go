package boothsim

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/okian/triagebooth/internal/domain/types"
	"github.com/okian/triagebooth/pkg/logger"
)

// watcher follows the booth websocket and counts broadcast events by type.
type watcher struct {
	conn *websocket.Conn
	done chan struct{}

	mu     sync.Mutex
	counts map[string]int
}

// wsURL derives the relay address from an http(s) base URL.
func wsURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// watch connects to the relay and starts counting in the background.
func watch(ctx context.Context, baseURL string) (*watcher, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL(baseURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect websocket: %w", err)
	}

	w := &watcher{conn: conn, done: make(chan struct{}), counts: make(map[string]int)}
	go w.listen(ctx)
	return w, nil
}

func (w *watcher) listen(ctx context.Context) {
	defer close(w.done)
	for {
		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			logger.Get().Debug(ctx, "websocket watch ended", logger.Error(err))
			return
		}
		env, err := types.Decode(msg)
		if err != nil {
			logger.Get().Warn(ctx, "undecodable broadcast", logger.Error(err))
			continue
		}

		w.mu.Lock()
		w.counts[env.Type]++
		w.mu.Unlock()
		logger.Get().Debug(ctx, "broadcast received", logger.String("type", env.Type))
	}
}

// stop closes the connection and returns the counts seen so far.
func (w *watcher) stop() map[string]int {
	_ = w.conn.Close()
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out
}
