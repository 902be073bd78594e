// Package registry ведет список зарегистрированных каналов. Канал
// попадает в список только после успешной проверки запросом getChat
// и дедупликации по числовому идентификатору.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"telegram-post-composer/internal/domain"
	"telegram-post-composer/internal/storage"
	"telegram-post-composer/internal/telegram"
)

// ChatLookup выполняет запрос метаданных чата. Интерфейс позволяет
// подменять клиент Bot API в тестах.
type ChatLookup interface {
	GetChat(ctx context.Context, ref domain.ChatRef) (*telegram.Chat, error)
}

// ErrAlreadySaved сообщает, что канал уже зарегистрирован. Это
// информационный исход, а не сбой: дубликат не добавляется повторно.
var ErrAlreadySaved = errors.New("chat already saved")

// Registry управляет коллекцией сохраненных каналов.
type Registry struct {
	store *storage.Store

	mu       sync.Mutex
	channels []domain.SavedChannel
}

// NewRegistry загружает сохраненные каналы из хранилища.
func NewRegistry(st *storage.Store) (*Registry, error) {
	r := &Registry{store: st}
	if _, err := st.GetJSON(storage.KeySavedChannels, &r.channels); err != nil {
		return nil, fmt.Errorf("failed to load saved channels: %w", err)
	}
	return r, nil
}

// NormalizeTarget приводит ввод оператора к виду, пригодному для getChat:
// строка, не начинающаяся с @ или - и не являющаяся числом, получает
// префикс @ как публичное имя.
func NormalizeTarget(raw string) domain.ChatRef {
	target := strings.TrimSpace(raw)
	if target == "" {
		return ""
	}
	if strings.HasPrefix(target, "@") || strings.HasPrefix(target, "-") {
		return domain.ChatRef(target)
	}
	if _, err := strconv.ParseInt(target, 10, 64); err == nil {
		return domain.ChatRef(target)
	}
	return domain.ChatRef("@" + target)
}

// AddChannel проверяет канал через Bot API и регистрирует его.
// Неудачный запрос пробрасывается как есть; дубликат возвращает
// существующую запись вместе с ErrAlreadySaved.
func (r *Registry) AddChannel(ctx context.Context, lookup ChatLookup, raw string) (domain.SavedChannel, error) {
	target := NormalizeTarget(raw)
	if target == "" {
		return domain.SavedChannel{}, errors.New("channel reference is empty")
	}

	chat, err := lookup.GetChat(ctx, target)
	if err != nil {
		return domain.SavedChannel{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.channels {
		if existing.ID == chat.ID {
			return existing, ErrAlreadySaved
		}
	}

	title := chat.Title
	if title == "" {
		title = chat.Username
	}
	if title == "" {
		title = "Unknown Chat"
	}

	saved := domain.SavedChannel{
		ID:      chat.ID,
		Title:   title,
		Kind:    chat.Type,
		AddedAt: time.Now(),
	}
	// Сначала запись на диск, затем фиксация в памяти: при отказе
	// хранилища список каналов не расходится с сохраненным.
	next := append(append([]domain.SavedChannel(nil), r.channels...), saved)
	if err := r.persist(next); err != nil {
		return domain.SavedChannel{}, err
	}
	r.channels = next
	return saved, nil
}

// RemoveChannel безусловно удаляет канал по идентификатору.
// Подтверждение у оператора спрашивает UI, а не реестр.
func (r *Registry) RemoveChannel(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.channels {
		if existing.ID == id {
			next := append(append([]domain.SavedChannel(nil), r.channels[:i]...), r.channels[i+1:]...)
			if err := r.persist(next); err != nil {
				return err
			}
			r.channels = next
			return nil
		}
	}
	return fmt.Errorf("channel %d is not saved", id)
}

// Channels возвращает снимок списка каналов.
func (r *Registry) Channels() []domain.SavedChannel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SavedChannel(nil), r.channels...)
}

func (r *Registry) persist(channels []domain.SavedChannel) error {
	if err := r.store.SetJSON(storage.KeySavedChannels, channels); err != nil {
		return fmt.Errorf("failed to persist saved channels: %w", err)
	}
	return nil
}
