package logs

import (
	"io"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"Conquest/internal/shared/config"
)

var (
	logger      = zap.NewNop()
	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init 构建全局 logger：控制台彩色输出，配置了 file_dir 时另写一份 JSON 到滚动文件。
func Init(appName string, cfg config.LogConfig) (*zap.Logger, error) {
	atomicLevel.SetLevel(parseLevel(cfg.Level))

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleCfg := encoderCfg
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)
	consoleSyncer := zapcore.Lock(os.Stderr)

	// 文件里不能有 ANSI 颜色，所以分成两路 core
	core := zapcore.NewCore(consoleEncoder, consoleSyncer, atomicLevel)
	if cfg.FileDir != "" {
		fileCfg := encoderCfg
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		var fileWriter io.Writer = &lumberjack.Logger{
			Filename:   cfg.FileDir,
			MaxSize:    max(1, cfg.MaxSize),
			MaxBackups: max(0, cfg.MaxBackups),
			MaxAge:     max(0, cfg.MaxAge),
			Compress:   cfg.Compress,
		}
		core = zapcore.NewTee(
			core,
			zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(fileWriter), atomicLevel),
		)
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Dev {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	l := zap.New(core, opts...).Named(appName)
	_ = logger.Sync()
	logger = l
	return l, nil
}

// SetLevel 热更新日志级别，非法值忽略。
func SetLevel(level string) bool {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return false
	}
	atomicLevel.SetLevel(lvl)
	return true
}

func Level() zapcore.Level {
	return atomicLevel.Level()
}

// L 全局 logger，未初始化时是 Nop。
func L() *zap.Logger {
	return logger
}

func Sync() {
	_ = logger.Sync()
}

func parseLevel(level string) zapcore.Level {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

// Fatal 输出后退出进程。
func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}
