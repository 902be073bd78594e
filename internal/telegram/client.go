// Package telegram реализует клиент Telegram Bot API: тонкий слой запросов
// без состояния поверх HTTP-эндпоинта бота. Метаданные уходят JSON-телом,
// операции с вложением — multipart-формой. Клиент не повторяет запросы
// и не считает ни одну операцию идемпотентной.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"telegram-post-composer/internal/domain"
	"telegram-post-composer/internal/keyboard"
	"telegram-post-composer/internal/media"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	defaultTimeout = 30 * time.Second

	// parseMode — единственный режим разметки, который производит конвертер.
	parseMode = "HTML"
)

// Client — клиент Bot API для одного бота. Единственный вход конструктора —
// строка учетных данных, из нее строится каждый URL метода.
type Client struct {
	token string
	base  string
	http  *resty.Client
	log   *slog.Logger
}

// ClientOption определяет функциональную опцию для конфигурации клиента.
type ClientOption func(*Client)

// WithBaseURL переопределяет базовый эндпоинт. Используется в тестах.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.base = baseURL
		}
	}
}

// WithLogger устанавливает логгер клиента.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTimeout устанавливает таймаут HTTP-транспорта.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// NewClient создает клиент для указанного токена бота.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token: token,
		base:  defaultBaseURL,
		http:  resty.New().SetTimeout(defaultTimeout),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse — конверт каждого ответа Bot API.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// replyMarkup — проводной вид инлайн-клавиатуры.
type replyMarkup struct {
	InlineKeyboard [][]keyboard.Button `json:"inline_keyboard"`
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
}

// invoke отправляет JSON-запрос и распаковывает result в out.
func (c *Client) invoke(ctx context.Context, method string, body, out any) error {
	c.log.DebugContext(ctx, "Executing API call", "method", method)

	req := c.http.R().SetContext(ctx).SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(c.methodURL(method))
	if err != nil {
		return &TransportError{Method: method, Err: err}
	}
	return c.decode(method, resp.Body(), out)
}

// decode разбирает конверт ответа. Отказ платформы превращается в APIError
// с дословным описанием, неразборчивое тело — в TransportError.
func (c *Client) decode(method string, body []byte, out any) error {
	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &TransportError{Method: method, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if !envelope.OK {
		desc := envelope.Description
		if desc == "" {
			desc = "Telegram API Error"
		}
		c.log.Warn("API call rejected", "method", method, "description", desc)
		return &APIError{Code: envelope.ErrorCode, Description: desc}
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return &TransportError{Method: method, Err: fmt.Errorf("failed to decode result: %w", err)}
		}
	}
	return nil
}

// GetMe проверяет учетные данные и возвращает профиль бота.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.invoke(ctx, "getMe", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetChat запрашивает метаданные чата по идентификатору или @username.
func (c *Client) GetChat(ctx context.Context, ref domain.ChatRef) (*Chat, error) {
	body := map[string]any{"chat_id": string(ref)}
	var chat Chat
	if err := c.invoke(ctx, "getChat", body, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

type sendMessageRequest struct {
	ChatID                string       `json:"chat_id"`
	Text                  string       `json:"text"`
	ParseMode             string       `json:"parse_mode"`
	DisableNotification   bool         `json:"disable_notification,omitempty"`
	ProtectContent        bool         `json:"protect_content,omitempty"`
	DisableWebPagePreview bool         `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           *replyMarkup `json:"reply_markup,omitempty"`
}

// SendMessage отправляет текстовое сообщение с разметкой.
func (c *Client) SendMessage(ctx context.Context, chat domain.ChatRef, text string, grid keyboard.Grid, opts domain.SendOptions) (*Message, error) {
	body := sendMessageRequest{
		ChatID:                string(chat),
		Text:                  text,
		ParseMode:             parseMode,
		DisableNotification:   opts.Silent,
		ProtectContent:        opts.ProtectContent,
		DisableWebPagePreview: opts.DisableLinkPreview,
		ReplyMarkup:           markupOrNil(grid),
	}
	var msg Message
	if err := c.invoke(ctx, "sendMessage", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendPhoto отправляет фото с подписью.
func (c *Client) SendPhoto(ctx context.Context, chat domain.ChatRef, src media.Source, caption string, grid keyboard.Grid, opts domain.SendOptions, spoiler bool) (*Message, error) {
	return c.sendMedia(ctx, "sendPhoto", "photo", chat, src, caption, grid, opts, spoiler)
}

// SendVideo отправляет видео с подписью.
func (c *Client) SendVideo(ctx context.Context, chat domain.ChatRef, src media.Source, caption string, grid keyboard.Grid, opts domain.SendOptions, spoiler bool) (*Message, error) {
	return c.sendMedia(ctx, "sendVideo", "video", chat, src, caption, grid, opts, spoiler)
}

// SendDocument отправляет документ с подписью. Флаг спойлера для
// документов платформой не поддерживается и сюда не передается.
func (c *Client) SendDocument(ctx context.Context, chat domain.ChatRef, src media.Source, caption string, grid keyboard.Grid, opts domain.SendOptions) (*Message, error) {
	return c.sendMedia(ctx, "sendDocument", "document", chat, src, caption, grid, opts, false)
}

// sendMedia собирает multipart-форму операции с вложением. Булевы флаги
// кодируются только при значении true; для локального файла сохраняется
// исходное имя, чтобы не-ASCII имена пережили передачу.
func (c *Client) sendMedia(ctx context.Context, method, field string, chat domain.ChatRef, src media.Source, caption string, grid keyboard.Grid, opts domain.SendOptions, spoiler bool) (*Message, error) {
	c.log.DebugContext(ctx, "Executing API call", "method", method, "chat", string(chat))

	fields := map[string]string{
		"chat_id":    string(chat),
		"parse_mode": parseMode,
	}
	if caption != "" {
		fields["caption"] = caption
	}
	if opts.Silent {
		fields["disable_notification"] = "true"
	}
	if opts.ProtectContent {
		fields["protect_content"] = "true"
	}
	if spoiler {
		fields["has_spoiler"] = "true"
	}
	if !grid.IsEmpty() {
		raw, err := json.Marshal(replyMarkup{InlineKeyboard: grid.Rows()})
		if err != nil {
			return nil, &TransportError{Method: method, Err: fmt.Errorf("failed to marshal reply markup: %w", err)}
		}
		fields["reply_markup"] = string(raw)
	}

	req := c.http.R().SetContext(ctx).SetMultipartFormData(fields)
	if src.Mode == media.ModeUpload {
		req.SetMultipartField(field, src.Upload.Filename, "", bytes.NewReader(src.Upload.Data))
	} else {
		req.SetMultipartFormData(map[string]string{field: src.URL})
	}

	resp, err := req.Post(c.methodURL(method))
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}

	var msg Message
	if err := c.decode(method, resp.Body(), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type editMessageRequest struct {
	ChatID      string       `json:"chat_id"`
	MessageID   int          `json:"message_id"`
	Text        string       `json:"text,omitempty"`
	Caption     string       `json:"caption,omitempty"`
	ParseMode   string       `json:"parse_mode,omitempty"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

// EditMessageText заменяет текст сообщения. Клавиатура передается,
// только когда сетка непуста.
func (c *Client) EditMessageText(ctx context.Context, target domain.EditTarget, text string, grid keyboard.Grid) error {
	body := editMessageRequest{
		ChatID:      string(target.ChatRef),
		MessageID:   target.MessageID,
		Text:        text,
		ParseMode:   parseMode,
		ReplyMarkup: markupOrNil(grid),
	}
	return c.invoke(ctx, "editMessageText", body, nil)
}

// EditMessageCaption заменяет подпись медиа-сообщения.
func (c *Client) EditMessageCaption(ctx context.Context, target domain.EditTarget, caption string, grid keyboard.Grid) error {
	body := editMessageRequest{
		ChatID:      string(target.ChatRef),
		MessageID:   target.MessageID,
		Caption:     caption,
		ParseMode:   parseMode,
		ReplyMarkup: markupOrNil(grid),
	}
	return c.invoke(ctx, "editMessageCaption", body, nil)
}

// EditMessageReplyMarkup заменяет клавиатуру сообщения. Пустая сетка
// передается намеренно: так снимается существующая клавиатура.
func (c *Client) EditMessageReplyMarkup(ctx context.Context, target domain.EditTarget, grid keyboard.Grid) error {
	body := editMessageRequest{
		ChatID:      string(target.ChatRef),
		MessageID:   target.MessageID,
		ReplyMarkup: &replyMarkup{InlineKeyboard: grid.Rows()},
	}
	return c.invoke(ctx, "editMessageReplyMarkup", body, nil)
}

// markupOrNil возвращает клавиатуру для JSON-тела или nil для пустой сетки.
func markupOrNil(grid keyboard.Grid) *replyMarkup {
	if grid.IsEmpty() {
		return nil
	}
	return &replyMarkup{InlineKeyboard: grid.Rows()}
}
