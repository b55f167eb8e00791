package errx

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Is_只按code比较语义(t *testing.T) {
	e1 := NewPrecondition("BIZ_X", "x").WithData("k", "v").WithCause(errors.New("cause1"))
	e2 := NewPrecondition("BIZ_X", "x2").WithData("k2", "v2")
	if !errors.Is(e1, e2) {
		t.Fatalf("期望 errors.Is(e1, e2)==true，e1=%v e2=%v", e1, e2)
	}
}

func TestError_拒绝类不捕获栈_但保留cause链(t *testing.T) {
	cause := errors.New("db down")
	err := NewResource("NOT_ENOUGH", "not enough gold").WithCause(cause)
	if got := err.Stack(); got != nil {
		t.Fatalf("期望拒绝类错误不捕获栈，got=%v", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("期望 cause 链不丢，err=%v", err)
	}
}

func TestError_故障捕获一次栈_且不重复捕获(t *testing.T) {
	fault := NewFault("TIMER_CORRUPT", "timer points nowhere").WithCause(errors.New("missing city"))
	if len(fault.Stack()) == 0 {
		t.Fatalf("期望故障捕获栈")
	}
	outer := NewFault("SWEEP_FAILED", "sweep failed").WithCause(fault)
	if got := outer.Stack(); got != nil {
		t.Fatalf("期望上层不重复捕获栈，got=%v", got)
	}
}

func TestError_Data_防止外部map污染(t *testing.T) {
	m := map[string]any{"k": "v"}
	err := NewValidation("BIZ_X", "").WithDataMap(m)
	m["k"] = "mutated"
	if got := err.Data()["k"]; got != "v" {
		t.Fatalf("期望构造时复制 data，got=%v", got)
	}
}

func TestKindOf_沿包装链识别分类(t *testing.T) {
	base := NewPrecondition("ON_COOLDOWN", "target on cooldown")
	wrapped := fmt.Errorf("resolve attack: %w", base)
	if got := KindOf(wrapped); got != KindPrecondition {
		t.Fatalf("KindOf=%v want precondition", got)
	}
	if !IsRejected(wrapped) {
		t.Fatalf("期望前置条件错误属于业务拒绝")
	}
	if got := KindOf(errors.New("plain")); got != KindFault {
		t.Fatalf("非 errx 错误应视为故障，got=%v", got)
	}
}

func TestWithMsg_保留错误码(t *testing.T) {
	err := ErrBadRequest.WithMsg("quantity must be positive, got %d", -1)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("WithMsg 不应改变错误码")
	}
	if err.Msg() != "quantity must be positive, got -1" {
		t.Fatalf("msg=%q", err.Msg())
	}
}
