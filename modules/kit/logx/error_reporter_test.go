package logx

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"Conquest/modules/kit/errx"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildErrorLog_能提取语义与栈(t *testing.T) {
	e := errx.NewFault("SYS_INTERNAL", "timer index corrupted").
		WithData("city_id", int64(7)).
		WithCause(errors.New("missing building"))

	meta := BuildErrorLog(e)
	if meta.Kind != "fault" {
		t.Fatalf("期望 kind=fault, got=%q", meta.Kind)
	}
	if meta.Code != "SYS_INTERNAL" || meta.Msg == "" {
		t.Fatalf("期望 code/msg 非空, got=%+v", meta)
	}
	if meta.Data["city_id"] != int64(7) {
		t.Fatalf("期望 data 包含 city_id, got=%v", meta.Data)
	}
	if len(meta.CauseChain) == 0 {
		t.Fatalf("期望 CauseChain 非空")
	}
	if meta.Origin == "" || meta.Stack == "" {
		t.Fatalf("期望 Origin/Stack 非空 origin=%q stack=%q", meta.Origin, meta.Stack)
	}
}

func TestReportError_按分类选择级别(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core))

	ReportErrorWithLoggerContext(context.Background(), l, "start_upgrade",
		errx.NewPrecondition("ALREADY_UNDER_CONSTRUCTION", "walls busy"))
	ReportErrorWithLoggerContext(context.Background(), l, "sweep",
		errx.NewFault("CONSISTENCY_FAULT", "bad timer").WithCause(errors.New("x")))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("期望 2 条日志, got=%d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel {
		t.Fatalf("业务拒绝应为 INFO, got=%v", entries[0].Level)
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("故障应为 ERROR, got=%v", entries[1].Level)
	}
}

func TestErrorLog_普通错误只带cause链(t *testing.T) {
	err := fmt.Errorf("flush batch: %w", errors.New("connection reset"))
	meta := BuildErrorLog(err)
	if meta.Code != "" || meta.Stack != "" {
		t.Fatalf("plain error should carry no code/stack: %+v", meta)
	}
	fields := meta.Fields()
	if len(fields) != 1 || fields[0].Key != "cause_chain" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}
