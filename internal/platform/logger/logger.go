// Package logger предоставляет структурированное логирование на базе zerolog.
// Поддерживает JSON формат для production и pretty-print для разработки.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// log — глобальный экземпляр логгера, инициализируется через Init или при импорте.
var log zerolog.Logger

// Config настраивает инициализацию логгера.
type Config struct {
	Level  string
	Pretty bool
	Output io.Writer
}

func init() {
	pretty := strings.ToLower(os.Getenv("LOG_PRETTY")) == "true"
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	Init(Config{Level: level, Pretty: pretty})
}

// Init инициализирует глобальный логгер с заданной конфигурацией.
func Init(cfg Config) {
	var output io.Writer = os.Stdout
	if cfg.Output != nil {
		output = cfg.Output
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	level := parseLevel(cfg.Level)

	log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "trace":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug создаёт событие лога уровня debug.
func Debug() *zerolog.Event { return log.Debug() }

// Info создаёт событие лога уровня info.
func Info() *zerolog.Event { return log.Info() }

// Warn создаёт событие лога уровня warn.
func Warn() *zerolog.Event { return log.Warn() }

// Error создаёт событие лога уровня error.
func Error() *zerolog.Event { return log.Error() }

// Fatal создаёт событие лога уровня fatal и завершает приложение.
func Fatal() *zerolog.Event { return log.Fatal() }

// With возвращает билдер для логгера с дополнительными полями.
func With() zerolog.Context { return log.With() }

// Logger возвращает глобальный zerolog.Logger.
func Logger() zerolog.Logger { return log }

// SetGlobalLogger подменяет глобальный логгер.
func SetGlobalLogger(l zerolog.Logger) { log = l }
