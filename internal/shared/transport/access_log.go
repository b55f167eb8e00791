package transport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"Conquest/modules/kit/logx"
	"Conquest/modules/kit/tracex"
)

// AccessLog 是一次请求的访问日志，处理过程中逐步填充，结束时由 WriteAccessLog 输出。
// ws 事件流也走这里，latency 即连接时长。
type AccessLog struct {
	BizCode     BizCode
	ErrorReason string
	Status      int
	PlayerID    int64

	startTime time.Time
	action    string
}

// Outcome 与指标的 outcome 标签取值一致：ok / rejected / error。
func (al *AccessLog) Outcome() string {
	switch {
	case al.BizCode == BizCode(OK):
		return "ok"
	case al.BizCode >= BizCode(SystemError):
		return "error"
	default:
		return "rejected"
	}
}

type accessLogKey struct{}

// NewContextWithParent 挂上 AccessLog 和新的 trace id，保留 parent 的取消信号。
func NewContextWithParent(parent context.Context, action string) context.Context {
	ctx := parent
	if ctx == nil {
		ctx = context.Background()
	}
	if action == "" {
		action = "unknown"
	}
	ctx = tracex.WithSpanID(tracex.EnsureTraceID(ctx), "http")
	return context.WithValue(ctx, accessLogKey{}, &AccessLog{
		BizCode:   BizCode(SystemError),
		startTime: time.Now(),
		action:    action,
	})
}

func FromContext(ctx context.Context) *AccessLog {
	if ctx == nil {
		return nil
	}
	al, _ := ctx.Value(accessLogKey{}).(*AccessLog)
	return al
}

func SetBizCode(ctx context.Context, code BizCode) {
	if al := FromContext(ctx); al != nil {
		al.BizCode = code
	}
}

// SetErrorReason 记录失败原因，一般是错误码文本。
func SetErrorReason(ctx context.Context, reason string) {
	if reason == "" {
		return
	}
	if al := FromContext(ctx); al != nil {
		al.ErrorReason = reason
	}
}

// SetResult 由中间件在请求结束时写入 HTTP 状态和鉴权得到的玩家。
func SetResult(ctx context.Context, status int, playerID int64) {
	if al := FromContext(ctx); al != nil {
		al.Status = status
		al.PlayerID = playerID
	}
}

// WriteAccessLog 输出访问日志，级别由业务码决定。
func WriteAccessLog(ctx context.Context, log logx.Logger) {
	al := FromContext(ctx)
	if al == nil || log == nil {
		return
	}
	fields := []zap.Field{
		zap.Duration("latency", time.Since(al.startTime)),
		zap.String("result", al.Outcome()),
	}
	if al.Status != 0 {
		fields = append(fields, zap.Int("status", al.Status))
	}
	if al.PlayerID > 0 {
		if _, ok := tracex.PlayerIDFrom(ctx); !ok {
			fields = append(fields, zap.Int64("player_id", al.PlayerID))
		}
	}
	if al.ErrorReason != "" && al.BizCode != BizCode(OK) {
		fields = append(fields, zap.String("error_reason", al.ErrorReason))
	}
	logx.ReportAccessWithLoggerContext(ctx, log, al.action, int(al.BizCode), fields...)
}
