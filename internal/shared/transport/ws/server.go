package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Conquest/modules/kit/logx"
)

const defaultQueue = 256

// Hub 按玩家维护事件流连接，同一玩家可以有多条连接。
type Hub struct {
	upgrader websocket.Upgrader
	queue    int
	log      logx.Logger

	mu    sync.RWMutex
	conns map[int64]map[*Conn]struct{}
}

func NewHub(l logx.Logger) *Hub {
	if l == nil {
		l = logx.Nop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			// 允许所有CORS跨域请求
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		queue: defaultQueue,
		log:   l,
		conns: make(map[int64]map[*Conn]struct{}),
	}
}

// Serve 把请求升级为 websocket 并订阅 playerID 的事件，调用方已完成鉴权。
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, playerID int64) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithContext(r.Context()).Warn("websocket upgrade error", zap.Error(err))
		return
	}
	c := newConn(wsConn, playerID, h.queue, h.log)
	h.add(c)
	c.Run()
	h.log.WithContext(r.Context()).Info("event stream opened", zap.Int64("player_id", playerID), zap.String("addr", c.Addr()))

	go func() {
		<-c.Done()
		h.remove(c)
	}()
}

// Push 发给该玩家的全部连接，返回成功入队的连接数。
func (h *Hub) Push(playerID int64, name string, data any) int {
	h.mu.RLock()
	set := h.conns[playerID]
	targets := make([]*Conn, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.Push(name, data) {
			sent++
		}
	}
	return sent
}

func (h *Hub) Online(playerID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[playerID])
}

// Close 关闭全部连接。
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.conns
	h.conns = make(map[int64]map[*Conn]struct{})
	h.mu.Unlock()
	for _, set := range all {
		for c := range set {
			c.Close()
		}
	}
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[c.playerID]
	if set == nil {
		set = make(map[*Conn]struct{})
		h.conns[c.playerID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[c.playerID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.playerID)
	}
}
