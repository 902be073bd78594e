// Package drafts хранит ограниченный список последних черновиков.
package drafts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"telegram-post-composer/internal/domain"
	"telegram-post-composer/internal/keyboard"
	"telegram-post-composer/internal/markup"
	"telegram-post-composer/internal/storage"
)

// maxDrafts — емкость списка: одиннадцатый черновик вытесняет старейший.
const maxDrafts = 10

// Store управляет списком черновиков: вставка в начало, усечение до
// емкости, сохранение в хранилище при каждом изменении.
type Store struct {
	store *storage.Store

	mu    sync.Mutex
	items []domain.Draft
}

// NewStore загружает сохраненные черновики из хранилища.
func NewStore(st *storage.Store) (*Store, error) {
	s := &Store{store: st}
	if _, err := st.GetJSON(storage.KeyRecentDrafts, &s.items); err != nil {
		return nil, fmt.Errorf("failed to load drafts: %w", err)
	}
	if len(s.items) > maxDrafts {
		s.items = s.items[:maxDrafts]
	}
	return s, nil
}

// Save снимает текущее состояние композера в черновик.
func (s *Store) Save(chatRef domain.ChatRef, msg markup.Formatted, buttons keyboard.Grid) (domain.Draft, error) {
	draft := domain.Draft{
		ID:        uuid.NewString(),
		ChatRef:   chatRef,
		HTML:      msg.HTML,
		Preview:   msg.Preview,
		Buttons:   buttons,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Список в памяти меняется только после успешной записи на диск.
	next := append([]domain.Draft{draft}, s.items...)
	if len(next) > maxDrafts {
		next = next[:maxDrafts]
	}
	if err := s.store.SetJSON(storage.KeyRecentDrafts, next); err != nil {
		return domain.Draft{}, fmt.Errorf("failed to persist drafts: %w", err)
	}
	s.items = next
	return draft, nil
}

// List возвращает черновики от новых к старым.
func (s *Store) List() []domain.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Draft(nil), s.items...)
}
