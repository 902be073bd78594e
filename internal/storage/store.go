// Package storage реализует плоское строково-ключевое хранилище,
// сохраняемое одним JSON-документом на диске. Это единственный
// бэкенд персистентности приложения.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Ключи хранилища.
const (
	KeyTheme             = "theme"
	KeyAccent            = "accent-color"
	KeyDisplayName       = "display-name"
	KeyCredential        = "credential"
	KeySavedChannels     = "saved-channels"
	KeyRecentDrafts      = "recent-drafts"
	KeyHasSeenOnboarding = "has-seen-onboarding"
)

// Store управляет хранением и извлечением значений по строковым ключам.
// Каждое изменение немедленно сохраняется на диск.
type Store struct {
	path string
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// Open загружает хранилище из файла. Отсутствующий файл — не ошибка:
// хранилище начинается пустым и файл появится при первой записи.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", path, err)
	}
	return s, nil
}

// GetString извлекает строковое значение по ключу.
func (s *Store) GetString(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.data[key]
	if !ok {
		return "", false
	}
	var val string
	if err := json.Unmarshal(raw, &val); err != nil {
		return "", false
	}
	return val, true
}

// SetString сохраняет строковое значение и сбрасывает документ на диск.
func (s *Store) SetString(key, value string) error {
	return s.SetJSON(key, value)
}

// GetJSON извлекает структурированное значение по ключу.
// Возвращает false, когда ключ отсутствует.
func (s *Store) GetJSON(key string, out any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode value for key %q: %w", key, err)
	}
	return true, nil
}

// SetJSON сохраняет структурированное значение и сбрасывает документ на диск.
func (s *Store) SetJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for key %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return s.flushLocked()
}

// Flag извлекает булев флаг; отсутствующий ключ означает false.
func (s *Store) Flag(key string) bool {
	var val bool
	ok, err := s.GetJSON(key, &val)
	return err == nil && ok && val
}

// SetFlag сохраняет булев флаг.
func (s *Store) SetFlag(key string, value bool) error {
	return s.SetJSON(key, value)
}

// Delete удаляет ключ и сбрасывает документ на диск.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flushLocked()
}

// flushLocked атомарно записывает документ: сначала во временный файл
// рядом, затем переименованием на место. Вызывается под мьютексом.
func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store document: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close store file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to chmod store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
