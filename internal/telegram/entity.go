package telegram

// Сущности Telegram Bot API.

// User — пользователь или бот из ответа getMe.
type User struct {
	ID                      int64  `json:"id"`
	IsBot                   bool   `json:"is_bot"`
	FirstName               string `json:"first_name"`
	LastName                string `json:"last_name,omitempty"`
	Username                string `json:"username,omitempty"`
	CanJoinGroups           bool   `json:"can_join_groups,omitempty"`
	CanReadAllGroupMessages bool   `json:"can_read_all_group_messages,omitempty"`
	SupportsInlineQueries   bool   `json:"supports_inline_queries,omitempty"`
}

// ChatPhoto — аватар чата.
type ChatPhoto struct {
	SmallFileID string `json:"small_file_id"`
	BigFileID   string `json:"big_file_id"`
}

// Chat — чат из ответа getChat.
type Chat struct {
	ID       int64      `json:"id"`
	Title    string     `json:"title,omitempty"`
	Username string     `json:"username,omitempty"`
	Type     string     `json:"type"`
	Photo    *ChatPhoto `json:"photo,omitempty"`
}

// Message — отправленное или отредактированное сообщение.
type Message struct {
	MessageID int    `json:"message_id"`
	Date      int64  `json:"date"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
	Caption   string `json:"caption,omitempty"`
}
