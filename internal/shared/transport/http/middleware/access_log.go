package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"Conquest/internal/shared/transport"
	"Conquest/modules/kit/logx"
)

type bodyCaptureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

// 只截取开头一段用于解析 code，避免大响应整块缓存。
const captureLimit = 4 << 10

func (w *bodyCaptureWriter) Write(data []byte) (int, error) {
	w.capture(data)
	return w.ResponseWriter.Write(data)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *bodyCaptureWriter) capture(data []byte) {
	if room := captureLimit - w.body.Len(); room > 0 {
		if len(data) > room {
			data = data[:room]
		}
		_, _ = w.body.Write(data)
	}
}

// AccessLog 统一写访问日志，业务码取响应体里的 `code` 字段。quiet 中的路由（探活、指标）不记录。
func AccessLog(log logx.Logger, quiet ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		if _, ok := skip[route]; ok {
			c.Next()
			return
		}

		ctx := transport.NewContextWithParent(c.Request.Context(), c.Request.Method+" "+route)
		c.Request = c.Request.WithContext(ctx)
		bw := &bodyCaptureWriter{ResponseWriter: c.Writer}
		c.Writer = bw

		c.Next()

		status := c.Writer.Status()
		switch code, ok := parseBizCode(bw.body.Bytes()); {
		case ok:
			transport.SetBizCode(ctx, transport.BizCode(code))
		case status >= http.StatusInternalServerError:
			transport.SetBizCode(ctx, transport.BizCode(transport.SystemError))
		case status >= http.StatusBadRequest:
			transport.SetBizCode(ctx, transport.BizCode(transport.InvalidParam))
		default:
			transport.SetBizCode(ctx, transport.BizCode(transport.OK))
		}
		pid, _ := PlayerID(c)
		transport.SetResult(ctx, status, pid)
		transport.WriteAccessLog(ctx, log)
	}
}

func parseBizCode(body []byte) (int, bool) {
	if len(body) == 0 {
		return 0, false
	}

	var payload struct {
		Code *int `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, false
	}
	if payload.Code == nil {
		return 0, false
	}
	return *payload.Code, true
}
