// Package log настраивает структурированное логирование приложения.
// Каждый логгер оборачивается маскировщиком токенов, чтобы учетные
// данные бота не попадали в вывод.
package log

import (
	"io"
	"log/slog"
)

// Setup создает логгер по настройкам уровня и формата. Неизвестные
// значения трактуются как info и json.
func Setup(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return NewMaskedLogger(handler)
}
