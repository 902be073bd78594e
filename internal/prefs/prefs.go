// Package prefs управляет пользовательскими настройками: темой, акцентным
// цветом, отображаемым именем и учетными данными бота. Настройки
// загружаются из хранилища один раз при старте и сохраняются при каждом
// зафиксированном изменении.
package prefs

import (
	"fmt"
	"sync"

	"telegram-post-composer/internal/storage"
)

// Theme — тема оформления.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeAmoled Theme = "amoled"
	ThemeSystem Theme = "system"
)

// Accent — акцентный цвет интерфейса.
type Accent string

const (
	AccentEmerald Accent = "emerald"
	AccentBlue    Accent = "blue"
	AccentViolet  Accent = "violet"
	AccentRose    Accent = "rose"
	AccentAmber   Accent = "amber"
)

func validTheme(t Theme) bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeAmoled, ThemeSystem:
		return true
	}
	return false
}

func validAccent(a Accent) bool {
	switch a {
	case AccentEmerald, AccentBlue, AccentViolet, AccentRose, AccentAmber:
		return true
	}
	return false
}

// Preferences — единый объект конфигурации пользователя.
// Изменения проходят только через методы-аксессоры.
type Preferences struct {
	store *storage.Store

	mu             sync.RWMutex
	theme          Theme
	accent         Accent
	displayName    string
	credential     string
	seenOnboarding bool
}

// Load читает настройки из хранилища, подставляя значения по умолчанию
// для отсутствующих ключей.
func Load(store *storage.Store) *Preferences {
	p := &Preferences{
		store:  store,
		theme:  ThemeSystem,
		accent: AccentEmerald,
	}

	if v, ok := store.GetString(storage.KeyTheme); ok && validTheme(Theme(v)) {
		p.theme = Theme(v)
	}
	if v, ok := store.GetString(storage.KeyAccent); ok && validAccent(Accent(v)) {
		p.accent = Accent(v)
	}
	if v, ok := store.GetString(storage.KeyDisplayName); ok {
		p.displayName = v
	}
	if v, ok := store.GetString(storage.KeyCredential); ok {
		p.credential = v
	}
	p.seenOnboarding = store.Flag(storage.KeyHasSeenOnboarding)
	return p
}

// Theme возвращает текущую тему.
func (p *Preferences) Theme() Theme {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.theme
}

// SetTheme сохраняет тему. Незнакомое значение отвергается.
func (p *Preferences) SetTheme(t Theme) error {
	if !validTheme(t) {
		return fmt.Errorf("unknown theme %q", t)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.theme = t
	return p.store.SetString(storage.KeyTheme, string(t))
}

// Accent возвращает акцентный цвет.
func (p *Preferences) Accent() Accent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.accent
}

// SetAccent сохраняет акцентный цвет. Незнакомое значение отвергается.
func (p *Preferences) SetAccent(a Accent) error {
	if !validAccent(a) {
		return fmt.Errorf("unknown accent %q", a)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accent = a
	return p.store.SetString(storage.KeyAccent, string(a))
}

// DisplayName возвращает отображаемое имя оператора.
func (p *Preferences) DisplayName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.displayName
}

// SetDisplayName сохраняет отображаемое имя.
func (p *Preferences) SetDisplayName(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.displayName = name
	return p.store.SetString(storage.KeyDisplayName, name)
}

// Credential возвращает токен бота.
func (p *Preferences) Credential() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.credential
}

// SetCredential сохраняет токен бота.
func (p *Preferences) SetCredential(token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.credential = token
	return p.store.SetString(storage.KeyCredential, token)
}

// HasSeenOnboarding сообщает, показывался ли уже вводный тур.
func (p *Preferences) HasSeenOnboarding() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.seenOnboarding
}

// MarkOnboardingSeen взводит одноразовый флаг вводного тура.
func (p *Preferences) MarkOnboardingSeen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seenOnboarding = true
	return p.store.SetFlag(storage.KeyHasSeenOnboarding, true)
}
