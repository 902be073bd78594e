// Package notify — приемник уведомлений: короткоживущие сообщения трех
// уровней, которые UI показывает оператору как тосты.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level — уровень уведомления.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification — одно короткоживущее сообщение для оператора.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink принимает уведомления для оператора.
type Sink interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
}

const defaultCapacity = 50

// Hub — ограниченная лента уведомлений, дублирующая их в лог.
// Новые записи вытесняют старейшие при переполнении.
type Hub struct {
	log *slog.Logger

	mu    sync.Mutex
	items []Notification
	cap   int
}

var _ Sink = (*Hub)(nil)

// NewHub создает ленту уведомлений.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{log: logger, cap: defaultCapacity}
}

// Success публикует уведомление об успехе.
func (h *Hub) Success(msg string) {
	h.log.Info(msg, "level", LevelSuccess)
	h.push(LevelSuccess, msg)
}

// Error публикует уведомление об ошибке.
func (h *Hub) Error(msg string) {
	h.log.Warn(msg, "level", LevelError)
	h.push(LevelError, msg)
}

// Info публикует информационное уведомление.
func (h *Hub) Info(msg string) {
	h.log.Info(msg, "level", LevelInfo)
	h.push(LevelInfo, msg)
}

func (h *Hub) push(level Level, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append(h.items, Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   msg,
		CreatedAt: time.Now(),
	})
	if len(h.items) > h.cap {
		h.items = h.items[len(h.items)-h.cap:]
	}
}

// Drain отдает накопленные уведомления и очищает ленту: каждое
// уведомление показывается ровно один раз.
func (h *Hub) Drain() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := h.items
	h.items = nil
	return out
}
