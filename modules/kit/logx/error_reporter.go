package logx

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"Conquest/modules/kit/errx"
)

const (
	maxCauseDepth  = 20
	maxStackFrames = 32
)

// ErrorLog 是一个错误展开后的日志字段。非 errx 错误只有 Error 和 CauseChain。
type ErrorLog struct {
	Error      string
	Kind       string
	Code       string
	Msg        string
	Reason     string
	Data       map[string]any
	CauseChain []string
	Origin     string
	Stack      string
}

// BuildErrorLog 取链上第一个 errx.Error 的码、分类、数据和栈。
func BuildErrorLog(err error) ErrorLog {
	if err == nil {
		return ErrorLog{}
	}
	out := ErrorLog{
		Error:      err.Error(),
		CauseChain: causeChain(err),
	}
	var e *errx.Error
	if !errors.As(err, &e) {
		return out
	}
	out.Kind = e.Kind().String()
	out.Code = e.CodeText()
	out.Msg = e.Msg()
	out.Reason = e.Reason()
	out.Data = e.Data()
	out.Origin, out.Stack = formatStack(e.Stack())
	return out
}

// Fields 转成 sys 日志的附加字段，空值省略。
func (m ErrorLog) Fields() []zap.Field {
	var fields []zap.Field
	if m.Kind != "" {
		fields = append(fields, zap.String("error_kind", m.Kind))
	}
	if m.Code != "" {
		fields = append(fields, zap.String("error_code", m.Code))
	}
	if len(m.CauseChain) != 0 {
		fields = append(fields, zap.Strings("cause_chain", m.CauseChain))
	}
	if len(m.Data) != 0 {
		fields = append(fields, zap.Any("error_data", m.Data))
	}
	if m.Origin != "" {
		fields = append(fields, zap.String("origin_caller", m.Origin))
	}
	if m.Stack != "" {
		fields = append(fields, zap.String("stack_origin", m.Stack))
	}
	return fields
}

func causeChain(err error) []string {
	var out []string
	for cur := errors.Unwrap(err); cur != nil && len(out) < maxCauseDepth; cur = errors.Unwrap(cur) {
		out = append(out, fmt.Sprintf("%T: %v", cur, cur))
	}
	return out
}

// formatStack 返回最内层调用点和多行栈文本。
func formatStack(pcs []uintptr) (origin string, stack string) {
	if len(pcs) == 0 {
		return "", ""
	}
	frames := runtime.CallersFrames(pcs)
	lines := make([]string, 0, 8)
	for len(lines) < maxStackFrames {
		f, more := frames.Next()
		if f.Function == "" && f.File == "" {
			break
		}
		lines = append(lines, f.Function+" "+f.File+":"+strconv.Itoa(f.Line))
		if !more {
			break
		}
	}
	if len(lines) == 0 {
		return "", ""
	}
	return lines[0], strings.Join(lines, "\n")
}
