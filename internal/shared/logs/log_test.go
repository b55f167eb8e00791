package logs

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"Conquest/internal/shared/config"
)

func TestSetLevel_热更新级别(t *testing.T) {
	if _, err := Init("test", config.LogConfig{Level: "warn"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if Level() != zapcore.WarnLevel {
		t.Fatalf("level=%v", Level())
	}
	if !SetLevel("DEBUG") || Level() != zapcore.DebugLevel {
		t.Fatalf("level not updated: %v", Level())
	}
	if SetLevel("loud") {
		t.Fatalf("invalid level should be rejected")
	}
	if Level() != zapcore.DebugLevel {
		t.Fatalf("invalid level changed current level")
	}
}

func TestInit_非法级别回退到info(t *testing.T) {
	if _, err := Init("test", config.LogConfig{Level: "???"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if Level() != zapcore.InfoLevel {
		t.Fatalf("level=%v", Level())
	}
}
