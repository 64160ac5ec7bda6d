package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 报价引擎的结构化日志器。嵌入 zap，并为引擎的领域事件
// （订单生命周期、报价周期、风控动作）提供带类型字段的入口。
type Logger struct {
	*zap.Logger
}

// Config 日志配置。stdout 恒定输出；文件为可选的追加目标。
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json 或 console
	OutputFile string // 追加写入的日志文件，留空则只写 stdout
	ErrorFile  string // error 及以上单独落盘，留空关闭
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// New 创建新的Logger实例
func New(cfg Config) (*Logger, error) {
	var level zapcore.Level
	if err := level.Set(strings.ToLower(strings.TrimSpace(cfg.Level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	if cfg.Format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	newEncoder := func() zapcore.Encoder {
		if cfg.Format == "console" {
			return zapcore.NewConsoleEncoder(encCfg)
		}
		return zapcore.NewJSONEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(), zapcore.Lock(os.Stdout), level),
	}
	if cfg.OutputFile != "" {
		sink, err := appendSink(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level))
	}
	if cfg.ErrorFile != "" {
		sink, err := appendSink(cfg.ErrorFile)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, zapcore.ErrorLevel))
	}

	return &Logger{zap.New(zapcore.NewTee(cores...), zap.AddCaller())}, nil
}

func appendSink(path string) (zapcore.WriteSyncer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return zapcore.AddSync(f), nil
}

// WithInstrument 返回绑定了交易对字段的子日志器。
func (l *Logger) WithInstrument(ticker string) *Logger {
	return &Logger{l.Logger.With(zap.String("instrument", ticker))}
}

// Order 订单生命周期事件：placed / status_event 等，info 级。
func (l *Logger) Order(event, orderID string, fields ...zap.Field) {
	l.Info("order_event",
		append([]zap.Field{zap.String("event", event), zap.String("order_id", orderID)}, fields...)...)
}

// Cycle 报价周期事件：每个 cadence 都可能触发，debug 级。
func (l *Logger) Cycle(event, instrument string, fields ...zap.Field) {
	l.Debug("quote_cycle",
		append([]zap.Field{zap.String("event", event), zap.String("instrument", instrument)}, fields...)...)
}

// Risk 风控事件：偏差撤单、库存越界信号，warn 级。
func (l *Logger) Risk(event, instrument string, fields ...zap.Field) {
	l.Warn("risk_event",
		append([]zap.Field{zap.String("event", event), zap.String("instrument", instrument)}, fields...)...)
}

// Close 关闭日志器
func (l *Logger) Close() error {
	return l.Sync()
}
