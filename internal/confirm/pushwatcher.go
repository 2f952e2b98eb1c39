package confirm

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dexgate/gateway/internal/chainrpc"
	"github.com/dexgate/gateway/internal/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	wsReconnBaseDelay = 1 * time.Second
	wsReconnMaxDelay  = 30 * time.Second
	wsPingPeriod      = 15 * time.Second
)

// WSWatcher is an optional PushWatcher backed by a chain node's websocket
// subscription endpoint. Connection handling (dial, ping, reconnect with
// exponential backoff) is adapted from the same reconnect-loop idiom used
// for market data subscriptions, repurposed here to watch for a single
// transaction handle's terminal status instead of an orderbook feed.
type WSWatcher struct {
	url string

	mu     sync.Mutex
	waiter map[string][]chan chainrpc.PollResult

	cancel context.CancelFunc
}

type wsEvent struct {
	Handle      string `json:"handle"`
	Status      int    `json:"status"`
	Fee         string `json:"fee"`
	BlockHeight uint64 `json:"blockHeight"`
}

func NewWSWatcher(url string) *WSWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &WSWatcher{
		url:    url,
		waiter: make(map[string][]chan chainrpc.PollResult),
		cancel: cancel,
	}
	go w.runLoop(ctx)
	return w
}

func (w *WSWatcher) Watch(ctx context.Context, scope, handle string) (<-chan chainrpc.PollResult, error) {
	ch := make(chan chainrpc.PollResult, 1)
	w.mu.Lock()
	w.waiter[handle] = append(w.waiter[handle], ch)
	w.mu.Unlock()
	return ch, nil
}

func (w *WSWatcher) Stop() {
	w.cancel()
}

func (w *WSWatcher) runLoop(ctx context.Context) {
	delay := wsReconnBaseDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(w.url, nil)
		if err != nil {
			logger.Debug("confirmation watcher dial failed", "error", err, "retry_in", delay)
			time.Sleep(delay)
			delay *= 2
			if delay > wsReconnMaxDelay {
				delay = wsReconnMaxDelay
			}
			continue
		}
		delay = wsReconnBaseDelay

		w.readLoop(ctx, conn)
		conn.Close()
	}
}

func (w *WSWatcher) readLoop(ctx context.Context, conn *websocket.Conn) {
	readTimeout := wsPingPeriod + 10*time.Second
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
	defer func() { <-done }()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev wsEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}
		w.dispatch(ev)
	}
}

func (w *WSWatcher) dispatch(ev wsEvent) {
	w.mu.Lock()
	chans := w.waiter[ev.Handle]
	delete(w.waiter, ev.Handle)
	w.mu.Unlock()

	for _, ch := range chans {
		ch <- chainrpc.PollResult{Status: ev.Status, Fee: ev.Fee, BlockHeight: ev.BlockHeight}
		close(ch)
	}
}
