package errx

import (
	"errors"
	"fmt"
	"runtime"
)

// Code 表示错误码（对外语义的稳定标识）。
type Code string

// Kind 是错误分类，决定接口层的映射方式以及是否需要捕获调用栈。
type Kind uint8

const (
	// KindValidation 入参不合法，任何状态都未触碰。
	KindValidation Kind = iota + 1
	// KindPrecondition 当前状态不允许该操作（建造中、冷却中等）。
	KindPrecondition
	// KindResource 资源或兵力不足，没有发生部分扣减。
	KindResource
	// KindFault 不变量被破坏或依赖故障，必须记录并作为内部错误上报。
	KindFault
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindResource:
		return "resource"
	case KindFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Rejected 表示业务拒绝（非故障）。
func (k Kind) Rejected() bool {
	return k == KindValidation || k == KindPrecondition || k == KindResource
}

// Reason 是错误原因的最小接口，只暴露 reason code。
type Reason interface {
	ReasonCode() string
}

// Error 是通用错误模型：
// - code/msg：对外语义
// - kind：分类，故障类在第一次挂 cause 时捕获一次栈
// - data：上下文（内部会复制，外部无法修改）
// - cause：原始错误链，只用于溯源
type Error struct {
	code  Code
	msg   string
	kind  Kind
	data  map[string]any
	cause error
	stack []uintptr
}

func New(kind Kind, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, kind: kind}
}

func NewValidation(code Code, msg string) *Error {
	return New(KindValidation, code, msg)
}

func NewPrecondition(code Code, msg string) *Error {
	return New(KindPrecondition, code, msg)
}

func NewResource(code Code, msg string) *Error {
	return New(KindResource, code, msg)
}

func NewFault(code Code, msg string) *Error {
	return New(KindFault, code, msg)
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.msg == "" {
		if e.cause == nil {
			return string(e.code)
		}
		return fmt.Sprintf("%s: %v", e.code, e.cause)
	}
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 只按错误码判断语义，忽略 msg/data/cause。
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.code == t.code
}

func (e *Error) Code() Code {
	if e == nil {
		return ""
	}
	return e.code
}

func (e *Error) CodeText() string {
	return string(e.Code())
}

func (e *Error) Msg() string {
	if e == nil {
		return ""
	}
	return e.msg
}

func (e *Error) Kind() Kind {
	if e == nil {
		return 0
	}
	return e.kind
}

// Data 返回 data 的拷贝。
func (e *Error) Data() map[string]any {
	if e == nil || e.data == nil {
		return nil
	}
	return cloneAnyMap(e.data)
}

// Reason 返回 data.reason。
func (e *Error) Reason() string {
	if e == nil || e.data == nil {
		return ""
	}
	s, _ := e.data["reason"].(string)
	return s
}

// Stack 返回故障第一次被包装时的调用栈。
func (e *Error) Stack() []uintptr {
	if e == nil || len(e.stack) == 0 {
		return nil
	}
	return cloneStack(e.stack)
}

func (e *Error) derive() *Error {
	return &Error{
		code:  e.code,
		msg:   e.msg,
		kind:  e.kind,
		data:  cloneAnyMap(e.data),
		cause: e.cause,
		stack: cloneStack(e.stack),
	}
}

func (e *Error) WithData(key string, value any) *Error {
	next := e.derive()
	if next.data == nil {
		next.data = make(map[string]any, 1)
	}
	next.data[key] = value
	return next
}

func (e *Error) WithReason(reason Reason) *Error {
	if reason == nil {
		return e.WithData("reason", "")
	}
	return e.WithData("reason", reason.ReasonCode())
}

func (e *Error) WithDataMap(data map[string]any) *Error {
	next := e.derive()
	if len(data) == 0 {
		return next
	}
	if next.data == nil {
		next.data = make(map[string]any, len(data))
	}
	for k, v := range data {
		next.data[k] = v
	}
	return next
}

// WithMsg 替换对外文案，错误码不变。
func (e *Error) WithMsg(format string, args ...any) *Error {
	next := e.derive()
	next.msg = fmt.Sprintf(format, args...)
	return next
}

func (e *Error) WithCause(cause error) *Error {
	next := e.derive()
	next.cause = cause
	// 下层已有栈时不再重复捕获。
	if next.kind == KindFault && cause != nil && len(next.stack) == 0 && !hasStackInChain(cause) {
		next.stack = captureStack(3)
	}
	return next
}

// KindOf 沿错误链找到第一个 *Error 的分类；非 errx 错误一律视为故障。
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.kind
	}
	return KindFault
}

// IsRejected 是否为业务拒绝（校验/前置条件/资源）。
func IsRejected(err error) bool {
	return err != nil && KindOf(err).Rejected()
}

func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneStack(in []uintptr) []uintptr {
	if len(in) == 0 {
		return nil
	}
	out := make([]uintptr, len(in))
	copy(out, in)
	return out
}

func captureStack(skip int) []uintptr {
	const maxDepth = 64
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip, pcs)
	if n <= 0 {
		return nil
	}
	return pcs[:n]
}

func hasStackInChain(err error) bool {
	const maxDepth = 32
	for i := 0; i < maxDepth && err != nil; i++ {
		if sp, ok := err.(interface{ Stack() []uintptr }); ok && len(sp.Stack()) != 0 {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
