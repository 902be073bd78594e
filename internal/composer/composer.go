// Package composer оркестрирует сборку и отправку поста: режим
// создания или правки, разрешение цели, валидацию и выбор ровно одного
// вызова Bot API по матрице маршрутизации.
package composer

import (
	"context"
	"sync"

	"telegram-post-composer/internal/domain"
	"telegram-post-composer/internal/keyboard"
	"telegram-post-composer/internal/markup"
	"telegram-post-composer/internal/media"
	"telegram-post-composer/internal/notify"
	"telegram-post-composer/internal/telegram"
)

// Mode — верхнеуровневый режим композера.
type Mode int

const (
	// ModeCompose — создание нового сообщения.
	ModeCompose Mode = iota
	// ModeEdit — правка существующего сообщения по пермалинку.
	ModeEdit
)

// State — состояние диспетчеризации.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSending
	StateDone
	StateFailed
)

// String возвращает имя состояния для логов и API.
func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateSending:
		return "sending"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// EditScope — независимые флаги областей правки.
type EditScope struct {
	Text    bool `json:"text"`
	Buttons bool `json:"buttons"`
}

// API — операции Bot API, которые использует диспетчеризация.
type API interface {
	SendMessage(ctx context.Context, chat domain.ChatRef, text string, grid keyboard.Grid, opts domain.SendOptions) (*telegram.Message, error)
	SendPhoto(ctx context.Context, chat domain.ChatRef, src media.Source, caption string, grid keyboard.Grid, opts domain.SendOptions, spoiler bool) (*telegram.Message, error)
	SendVideo(ctx context.Context, chat domain.ChatRef, src media.Source, caption string, grid keyboard.Grid, opts domain.SendOptions, spoiler bool) (*telegram.Message, error)
	SendDocument(ctx context.Context, chat domain.ChatRef, src media.Source, caption string, grid keyboard.Grid, opts domain.SendOptions) (*telegram.Message, error)
	EditMessageText(ctx context.Context, target domain.EditTarget, text string, grid keyboard.Grid) error
	EditMessageCaption(ctx context.Context, target domain.EditTarget, caption string, grid keyboard.Grid) error
	EditMessageReplyMarkup(ctx context.Context, target domain.EditTarget, grid keyboard.Grid) error
}

var _ API = (*telegram.Client)(nil)

// Factory строит клиент Bot API из учетных данных. Клиент создается
// заново на каждую диспетчеризацию, как и фабрика сервиса в UI.
type Factory func(token string) API

// Composer — оркестратор одного поста. Все поля мутируются только
// владеющим слоем; одновременно выполняется не более одной
// диспетчеризации.
type Composer struct {
	sink    notify.Sink
	factory Factory

	mu         sync.Mutex
	state      State
	mode       Mode
	credential string
	target     domain.ChatRef
	editTarget *domain.EditTarget
	scope      EditScope
	content    markup.Formatted
	grid       keyboard.Grid
	attachment media.Attachment
	options    domain.SendOptions
}

// NewComposer создает оркестратор. Нулевая фабрика заменяется
// конструктором настоящего клиента.
func NewComposer(sink notify.Sink, factory Factory) *Composer {
	if factory == nil {
		factory = func(token string) API { return telegram.NewClient(token) }
	}
	return &Composer{sink: sink, factory: factory, state: StateIdle}
}

// State возвращает текущее состояние диспетчеризации.
func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetCredential устанавливает учетные данные бота.
func (c *Composer) SetCredential(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credential = token
}

// SetMode переключает режим создания или правки.
func (c *Composer) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
}

// SetTarget устанавливает цель отправки в режиме создания.
func (c *Composer) SetTarget(ref domain.ChatRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = ref
}

// SetEditLink разбирает пермалинк и запоминает цель правки. Ошибка
// разбора блокирует только разрешение цели, остальные поля не трогает.
func (c *Composer) SetEditLink(raw string) (domain.EditTarget, error) {
	target, err := ParsePostLink(raw)
	if err != nil {
		return domain.EditTarget{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editTarget = &target
	return target, nil
}

// SetEditScope устанавливает области правки.
func (c *Composer) SetEditScope(scope EditScope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope = scope
}

// SetContent устанавливает сконвертированную разметку поста.
func (c *Composer) SetContent(f markup.Formatted) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = f
}

// Content возвращает текущую разметку поста.
func (c *Composer) Content() markup.Formatted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// SetGrid заменяет сетку инлайн-кнопок.
func (c *Composer) SetGrid(g keyboard.Grid) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grid = g
}

// Grid возвращает копию текущей сетки кнопок.
func (c *Composer) Grid() keyboard.Grid {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grid
}

// Attachment возвращает копию текущего вложения. Изменения вносятся
// через SetAttachment, прямого доступа к внутреннему состоянию нет.
func (c *Composer) Attachment() media.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachment
}

// SetAttachment заменяет вложение целиком.
func (c *Composer) SetAttachment(att media.Attachment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachment = att
}

// SetOptions устанавливает опции отправки.
func (c *Composer) SetOptions(opts domain.SendOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = opts
}

// Target возвращает текущую цель отправки.
func (c *Composer) Target() domain.ChatRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// snapshot — неизменяемый срез полей на момент диспетчеризации.
type snapshot struct {
	mode       Mode
	credential string
	target     domain.ChatRef
	editTarget *domain.EditTarget
	scope      EditScope
	content    markup.Formatted
	grid       keyboard.Grid
	kind       media.Kind
	source     media.Source
	hasSource  bool
	spoiler    bool
	options    domain.SendOptions
}

// Dispatch валидирует состояние и выполняет ровно один вызов Bot API.
// Повторный вызов при незавершенной диспетчеризации отклоняется с
// ErrDispatchInFlight. Для операций правки сообщение не возвращается.
func (c *Composer) Dispatch(ctx context.Context) (*telegram.Message, error) {
	c.mu.Lock()
	if c.state == StateValidating || c.state == StateSending {
		c.mu.Unlock()
		return nil, ErrDispatchInFlight
	}
	c.state = StateValidating
	snap := snapshot{
		mode:       c.mode,
		credential: c.credential,
		target:     c.target,
		editTarget: c.editTarget,
		scope:      c.scope,
		content:    c.content,
		grid:       c.grid,
		kind:       c.attachment.Kind(),
		spoiler:    c.attachment.Spoiler(),
		options:    c.options,
	}
	snap.source, snap.hasSource = c.attachment.Source()
	c.mu.Unlock()

	if err := snap.validate(); err != nil {
		c.setState(StateFailed)
		c.sink.Error(err.Error())
		return nil, err
	}

	c.setState(StateSending)
	msg, err := snap.dispatch(ctx, c.factory(snap.credential))
	if err != nil {
		c.setState(StateFailed)
		c.sink.Error(err.Error())
		return nil, err
	}

	c.setState(StateDone)
	if snap.mode == ModeEdit {
		c.sink.Success("Message updated")
	} else {
		c.sink.Success("Message sent")
	}
	return msg, nil
}

func (c *Composer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// validate проверяет срез в фиксированном порядке: учетные данные,
// цель, содержимое, затем области правки.
func (s snapshot) validate() error {
	if s.credential == "" {
		return &ValidationError{Code: CodeMissingCredential}
	}
	if s.mode == ModeEdit {
		if s.editTarget == nil {
			return &ValidationError{Code: CodeMissingTarget}
		}
	} else if s.target == "" {
		return &ValidationError{Code: CodeMissingTarget}
	}
	if s.content.IsEmpty() {
		hasMedia := s.kind != media.None && s.hasSource
		if !(s.mode == ModeCompose && hasMedia) {
			return &ValidationError{Code: CodeEmptyContent}
		}
	}
	if s.mode == ModeEdit && !s.scope.Text && !s.scope.Buttons {
		return &ValidationError{Code: CodeNothingToUpdate}
	}
	return nil
}

// dispatch выбирает вызов Bot API по виду вложения и областям правки.
func (s snapshot) dispatch(ctx context.Context, api API) (*telegram.Message, error) {
	if s.mode == ModeEdit {
		return nil, s.dispatchEdit(ctx, api)
	}

	switch s.kind {
	case media.Photo:
		return api.SendPhoto(ctx, s.target, s.source, s.content.HTML, s.grid, s.options, s.spoiler)
	case media.Video:
		return api.SendVideo(ctx, s.target, s.source, s.content.HTML, s.grid, s.options, s.spoiler)
	case media.Document:
		return api.SendDocument(ctx, s.target, s.source, s.content.HTML, s.grid, s.options)
	default:
		return api.SendMessage(ctx, s.target, s.content.HTML, s.grid, s.options)
	}
}

// dispatchEdit маршрутизирует правку. Клавиатура идет вместе с текстом
// только при выбранной области кнопок; правка одних кнопок передает
// сетку безусловно, позволяя пустой сеткой снять клавиатуру.
func (s snapshot) dispatchEdit(ctx context.Context, api API) error {
	target := *s.editTarget

	if s.scope.Text {
		grid := keyboard.Grid{}
		if s.scope.Buttons {
			grid = s.grid
		}
		if s.kind == media.None {
			return api.EditMessageText(ctx, target, s.content.HTML, grid)
		}
		return api.EditMessageCaption(ctx, target, s.content.HTML, grid)
	}
	return api.EditMessageReplyMarkup(ctx, target, s.grid)
}
