package logx

import (
	"context"
	"fmt"

	"Conquest/modules/kit/errx"

	"go.uber.org/zap"
)

// BizLog 是业务拒绝日志的强类型输入。
type BizLog struct {
	Action  string
	Reason  string
	Message string
}

// SysLog 是技术错误日志的强类型输入。
type SysLog struct {
	Action string
	Err    error
}

func NewBizLog(action, reason, message string) BizLog {
	return BizLog{
		Action:  action,
		Reason:  reason,
		Message: message,
	}
}

func NewSysLog(action string, err error) SysLog {
	return SysLog{
		Action: action,
		Err:    err,
	}
}

// ReportAccessWithLoggerContext 记录访问日志：
// - biz_code == 0: INFO
// - biz_code  1~499: WARN
// - biz_code >= 500: ERROR
func ReportAccessWithLoggerContext(ctx context.Context, l Logger, action string, bizCode int, fields ...zap.Field) {
	if l == nil {
		return
	}
	base := []zap.Field{
		zap.String("log_type", "access"),
		zap.String("action", action),
		zap.Int("biz_code", bizCode),
	}
	base = append(base, fields...)
	withCtx := l.WithContext(ctx)
	switch {
	case bizCode == 0:
		withCtx.Info("access", base...)
	case bizCode >= 500:
		withCtx.Error("access", base...)
	default:
		withCtx.Warn("access", base...)
	}
}

// ReportBizWithLoggerContext 记录业务拒绝：INFO、err_type=biz、不带堆栈。
func ReportBizWithLoggerContext(ctx context.Context, l Logger, biz BizLog, fields ...zap.Field) {
	if l == nil {
		return
	}
	action := biz.Action
	if action == "" {
		action = "biz_reject"
	}

	base := []zap.Field{
		zap.String("err_type", "biz"),
		zap.String("action", action),
	}
	if biz.Reason != "" {
		base = append(base, zap.String("reason", biz.Reason))
	}
	if biz.Message != "" {
		base = append(base, zap.String("biz_message", biz.Message))
	}
	base = append(base, fields...)

	msg := action
	switch {
	case biz.Reason != "" && biz.Message != "":
		msg = fmt.Sprintf("%s, reason:%s, msg:%s", action, biz.Reason, biz.Message)
	case biz.Reason != "":
		msg = fmt.Sprintf("%s, reason:%s", action, biz.Reason)
	case biz.Message != "":
		msg = fmt.Sprintf("%s, msg:%s", action, biz.Message)
	}
	l.WithContext(ctx).Info(msg, base...)
}

// ReportSysErrorWithLoggerContext 记录故障：ERROR、err_type=sys，附带栈信息。
func ReportSysErrorWithLoggerContext(ctx context.Context, l Logger, sys SysLog, fields ...zap.Field) {
	if sys.Err == nil || l == nil {
		return
	}
	action := sys.Action
	if action == "" {
		action = "sys_error"
	}

	meta := BuildErrorLog(sys.Err)
	base := []zap.Field{
		zap.String("err_type", "sys"),
		zap.String("action", action),
	}
	base = append(base, meta.Fields()...)
	base = append(base, fields...)

	finalMsg := fmt.Sprintf("%s, error:%s", action, meta.Error)
	if meta.Reason != "" {
		finalMsg = fmt.Sprintf("%s, reason:%s, error:%s", action, meta.Reason, meta.Error)
	}
	l.WithContext(ctx).Error(finalMsg, base...)
}

// ReportErrorWithLoggerContext 按错误分类选择上报方式：业务拒绝走 biz，其余走 sys。
func ReportErrorWithLoggerContext(ctx context.Context, l Logger, action string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	if errx.IsRejected(err) {
		meta := BuildErrorLog(err)
		reason := meta.Reason
		if reason == "" {
			reason = meta.Code
		}
		ReportBizWithLoggerContext(ctx, l, NewBizLog(action, reason, meta.Msg), fields...)
		return
	}
	ReportSysErrorWithLoggerContext(ctx, l, NewSysLog(action, err), fields...)
}
