package notify

import (
	"context"
	"sync"
	"time"

	"mission_rewards/internal/model"
	"mission_rewards/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type subscriber struct {
	runID uuid.UUID
	send  chan []byte
}

// Hub pushes run transitions to websocket clients watching that run. Slow
// clients lose frames rather than stall the caller.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[*subscriber]struct{})}
}

func (h *Hub) RunChanged(_ context.Context, run *model.MissionRun) {
	data, err := json.Marshal(runMessage(run))
	if err != nil {
		logger.Logger().Error("failed to marshal run event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[run.ID] {
		select {
		case sub.send <- data:
		default:
			logger.Logger().Warn("dropping run event for slow subscriber",
				zap.String("run_id", run.ID.String()))
		}
	}
}

func (h *Hub) subscribe(runID uuid.UUID) *subscriber {
	sub := &subscriber{runID: runID, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[*subscriber]struct{})
	}
	h.subs[runID][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs[sub.runID], sub)
	if len(h.subs[sub.runID]) == 0 {
		delete(h.subs, sub.runID)
	}
	h.mu.Unlock()
}

func (h *Hub) Subscribers(runID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[runID])
}

// Serve streams events for runID to conn until the client goes away or ctx ends.
// The current state is sent first when initial is non-nil.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, runID uuid.UUID, initial *model.MissionRun) {
	sub := h.subscribe(runID)
	defer func() {
		h.unsubscribe(sub)
		conn.Close()
	}()

	if initial != nil {
		data, err := json.Marshal(runMessage(initial))
		if err == nil {
			sub.send <- data
		}
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Logger().Debug("websocket unexpected close", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Logger().Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		}
	}
}
