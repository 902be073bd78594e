// Package domain содержит модели данных приложения.
package domain

import (
	"time"

	"telegram-post-composer/internal/keyboard"
)

// ChatRef — ссылка на чат: числовой идентификатор ("-100123", "123")
// или публичное имя с собакой ("@channel").
type ChatRef string

// SavedChannel — зарегистрированный канал, подтвержденный запросом getChat.
type SavedChannel struct {
	ID      int64     `json:"id"`
	Title   string    `json:"title"`
	Kind    string    `json:"type"`
	AddedAt time.Time `json:"added_at"`
}

// Draft — снимок композера: цель, разметка и клавиатура на момент
// сохранения.
type Draft struct {
	ID        string        `json:"id"`
	ChatRef   ChatRef       `json:"chat_ref"`
	HTML      string        `json:"html"`
	Preview   string        `json:"preview"`
	Buttons   keyboard.Grid `json:"buttons"`
	Timestamp time.Time     `json:"timestamp"`
}

// BotIdentity — результат проверки учетных данных бота. Не сохраняется:
// при каждой ревалидации выводится заново из ответа getMe.
type BotIdentity struct {
	ID                      int64  `json:"id"`
	IsBot                   bool   `json:"is_bot"`
	DisplayName             string `json:"display_name"`
	Username                string `json:"username,omitempty"`
	CanJoinGroups           bool   `json:"can_join_groups,omitempty"`
	CanReadAllGroupMessages bool   `json:"can_read_all_group_messages,omitempty"`
	SupportsInlineQueries   bool   `json:"supports_inline_queries,omitempty"`
}

// SendOptions — опции отправки сообщения. DisableLinkPreview действует
// только для сообщений без вложения.
type SendOptions struct {
	Silent             bool `json:"silent"`
	ProtectContent     bool `json:"protect_content"`
	DisableLinkPreview bool `json:"disable_link_preview"`
}

// EditTarget — цель редактирования, выведенная из пермалинка сообщения.
type EditTarget struct {
	ChatRef   ChatRef `json:"chat_ref"`
	MessageID int     `json:"message_id"`
}

// Announcement — удаленное объявление. Отсутствие документа или ошибка
// загрузки молча игнорируются.
type Announcement struct {
	Show       bool   `json:"show"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	ButtonText string `json:"buttonText,omitempty"`
	ButtonURL  string `json:"buttonUrl,omitempty"`
}
