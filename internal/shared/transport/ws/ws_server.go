package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Conquest/modules/kit/logx"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxReadMsg = 4 << 10
)

// Conn 是一条玩家事件流连接。服务端只推送，客户端只发心跳。
type Conn struct {
	conn     *websocket.Conn
	playerID int64
	outChan  chan *RespBody
	dropped int
	mu      sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	log       logx.Logger
}

func newConn(wsConn *websocket.Conn, playerID int64, queue int, l logx.Logger) *Conn {
	return &Conn{
		conn:     wsConn,
		playerID: playerID,
		outChan:  make(chan *RespBody, queue),
		done:     make(chan struct{}),
		log:      l.With(zap.Int64("player_id", playerID)),
	}
}

func (c *Conn) PlayerID() int64 { return c.playerID }

func (c *Conn) Addr() string {
	return c.conn.RemoteAddr().String()
}

// Push 非阻塞入队；队列满时计数丢弃。
func (c *Conn) Push(name string, data any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped > 0 {
		select {
		case c.outChan <- &RespBody{Name: DroppedMsg, Msg: map[string]int{"count": c.dropped}}:
			c.dropped = 0
		default:
			c.dropped++
			return false
		}
	}
	select {
	case c.outChan <- &RespBody{Name: name, Msg: data}:
		return true
	case <-c.done:
		return false
	default:
		c.dropped++
		return false
	}
}

func (c *Conn) Run() {
	go c.readMsgLoop()
	go c.writeMsgLoop()
}

func (c *Conn) readMsgLoop() {
	defer func() {
		if err := recover(); err != nil {
			c.log.Error("ws readMsgLoop panic", zap.String("err", fmt.Sprintf("%v", err)))
		}
		c.Close()
	}()
	c.conn.SetReadLimit(maxReadMsg)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("ws read msg", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		req := ReqBody{}
		if err := json.Unmarshal(data, &req); err != nil {
			c.log.Debug("ws invalid message", zap.Error(err))
			continue
		}
		if req.Name != HeartbeatMsg {
			continue
		}
		h := &Heartbeat{}
		_ = mapstructure.Decode(req.Msg, h)
		h.STime = time.Now().UnixMilli()
		select {
		case c.outChan <- &RespBody{Seq: req.Seq, Name: HeartbeatMsg, Msg: h}:
		default:
		}
	}
}

func (c *Conn) writeMsgLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case msg := <-c.outChan:
			if err := c.write(msg); err != nil {
				c.log.Warn("ws write msg", zap.String("name", msg.Name), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) write(msg *RespBody) error {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("ws marshal json error", zap.String("name", msg.Name), zap.Error(err))
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.conn.Close()
		close(c.done)
	})
}

// Done 连接关闭时关闭。
func (c *Conn) Done() <-chan struct{} {
	return c.done
}
