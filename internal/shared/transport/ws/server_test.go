package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, h *Hub, playerID int64) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, playerID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err=%v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.Online(playerID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("连接未在超时前注册到 hub")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readBody(t *testing.T, conn *websocket.Conn) RespBody {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read err=%v", err)
	}
	var body RespBody
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal err=%v data=%s", err, data)
	}
	return body
}

func TestHub_推送只到达对应玩家(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()
	conn := dialHub(t, h, 7)

	if n := h.Push(8, "city.attacked", map[string]int{"x": 1}); n != 0 {
		t.Fatalf("期望其他玩家无连接, got=%d", n)
	}
	if n := h.Push(7, "construction.completed", map[string]string{"building": "farm"}); n != 1 {
		t.Fatalf("期望推送到 1 条连接, got=%d", n)
	}
	body := readBody(t, conn)
	if body.Name != "construction.completed" {
		t.Fatalf("unexpected push: %+v", body)
	}
}

func TestHub_心跳回显服务端时间(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()
	conn := dialHub(t, h, 3)

	req := ReqBody{Seq: 9, Name: HeartbeatMsg, Msg: map[string]int64{"ctime": 100}}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write err=%v", err)
	}
	body := readBody(t, conn)
	if body.Seq != 9 || body.Name != HeartbeatMsg {
		t.Fatalf("unexpected heartbeat reply: %+v", body)
	}
	msg, _ := body.Msg.(map[string]any)
	if msg["ctime"] != float64(100) || msg["stime"] == float64(0) {
		t.Fatalf("期望回显 ctime 并带上 stime, got=%v", msg)
	}
}

func TestHub_连接关闭后注销(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h, 5)
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Online(5) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("期望连接关闭后从 hub 移除")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
