package logger

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// 全局日志实例
	logger atomic.Pointer[zap.Logger]
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
	once   sync.Once
)

// 初始化日志
func init() {
	once.Do(func() {
		logger.Store(newLogger("json"))
	})
}

// newLogger 创建一个新的日志实例
func newLogger(format string) *zap.Logger {
	// 创建基础的encoder配置
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	encoder := zapcore.NewJSONEncoder(encoderConfig)
	if format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	// 创建Core
	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)

	// 创建Logger
	return zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

// SetFormat 切换输出格式（json 或 console），可与日志调用并发
func SetFormat(format string) {
	logger.Store(newLogger(format))
}

// Info 记录INFO级别的日志
func Info(msg string, fields ...zap.Field) {
	logger.Load().Info(msg, fields...)
}

// Debug 记录DEBUG级别的日志
func Debug(msg string, fields ...zap.Field) {
	logger.Load().Debug(msg, fields...)
}

// Warn 记录WARN级别的日志
func Warn(msg string, fields ...zap.Field) {
	logger.Load().Warn(msg, fields...)
}

// Error 记录ERROR级别的日志
func Error(msg string, fields ...zap.Field) {
	logger.Load().Error(msg, fields...)
}

// Fatal 记录FATAL级别的日志，然后退出程序
func Fatal(msg string, fields ...zap.Field) {
	logger.Load().Fatal(msg, fields...)
}

// With 返回带有指定字段的Logger
func With(fields ...zap.Field) *zap.Logger {
	return logger.Load().WithOptions(zap.AddCallerSkip(-1)).With(fields...)
}

// SetLevel 设置日志级别，未知级别回退到 info
func SetLevel(lvl string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(lvl)); err != nil {
		zapLevel = zap.InfoLevel
	}
	level.SetLevel(zapLevel)
}

// Level 返回当前日志级别
func Level() zapcore.Level {
	return level.Level()
}
