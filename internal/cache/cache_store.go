// Package cache предоставляет TTL-кэш проверенных профилей бота.
// Повторная ревалидация одних и тех же учетных данных не ходит в сеть,
// пока запись не истечет.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"telegram-post-composer/internal/domain"
)

// CacheItem представляет кэшированный профиль с временем истечения
type CacheItem struct {
	Identity  domain.BotIdentity
	ExpiresAt time.Time
}

// CacheStore управляет хранением и извлечением кэшированных профилей
type CacheStore struct {
	cache map[string]*CacheItem
	mutex sync.RWMutex
}

// NewCacheStore создает новый экземпляр CacheStore
func NewCacheStore() *CacheStore {
	return &CacheStore{
		cache: make(map[string]*CacheItem),
	}
}

// Key превращает учетные данные в ключ кэша. Сырой токен не хранится
// в ключах, чтобы не размножать его копии в памяти.
func Key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum)
}

// Get извлекает кэшированный профиль по ключу
func (cs *CacheStore) Get(key string) (domain.BotIdentity, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	item, exists := cs.cache[key]
	if !exists || time.Now().After(item.ExpiresAt) {
		// Элемент не существует или срок его действия истек
		return domain.BotIdentity{}, false
	}
	return item.Identity, true
}

// Put сохраняет профиль в кэш с указанным сроком действия
func (cs *CacheStore) Put(key string, identity domain.BotIdentity, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.cache[key] = &CacheItem{
		Identity:  identity,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// Invalidate удаляет запись, например при смене учетных данных
func (cs *CacheStore) Invalidate(key string) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	delete(cs.cache, key)
}

// CleanupExpired удаляет просроченные элементы из кэша
func (cs *CacheStore) CleanupExpired() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := time.Now()
	for key, item := range cs.cache {
		if now.After(item.ExpiresAt) {
			delete(cs.cache, key)
		}
	}
}

// StartCleanupTicker запускает таймер для периодической очистки просроченных элементов
func (cs *CacheStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}
