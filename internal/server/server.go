// Package server предоставляет HTTP API композера: учетные данные,
// каналы, отправка и правка сообщений, черновики, настройки и
// уведомления.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"telegram-post-composer/internal/cache"
	"telegram-post-composer/internal/composer"
	"telegram-post-composer/internal/domain"
	"telegram-post-composer/internal/drafts"
	"telegram-post-composer/internal/notify"
	"telegram-post-composer/internal/pkg/config"
	"telegram-post-composer/internal/prefs"
	"telegram-post-composer/internal/registry"
	"telegram-post-composer/internal/telegram"
)

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	log        *slog.Logger

	prefs      *prefs.Preferences
	registry   *registry.Registry
	drafts     *drafts.Store
	hub        *notify.Hub
	comp       *composer.Composer
	identities *cache.CacheStore

	// dispatchMu делает применение запроса и диспетчеризацию единым
	// шагом: композер один на сервер, и его поля нельзя перезаписывать,
	// пока другой запрос находится в полете.
	dispatchMu sync.Mutex

	// Объявление загружается один раз при старте и отдается как есть.
	announcement atomic.Pointer[domain.Announcement]
}

// Deps — коллабораторы сервера.
type Deps struct {
	Prefs      *prefs.Preferences
	Registry   *registry.Registry
	Drafts     *drafts.Store
	Hub        *notify.Hub
	Identities *cache.CacheStore
}

// New создает новый экземпляр Server
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	if deps.Identities == nil {
		deps.Identities = cache.NewCacheStore()
	}
	s := &Server{
		cfg:        cfg,
		log:        logger,
		prefs:      deps.Prefs,
		registry:   deps.Registry,
		drafts:     deps.Drafts,
		hub:        deps.Hub,
		identities: deps.Identities,
	}
	s.comp = composer.NewComposer(deps.Hub, func(token string) composer.API {
		return s.clientFor(token)
	})

	chiRouter := chi.NewRouter()

	// Промежуточное ПО
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	// Конечная точка для проверки работоспособности
	chiRouter.Get("/health", s.handleHealth)

	// Маршруты API
	chiRouter.Route("/api/v1", func(r chi.Router) {
		r.Get("/credential", s.handleCredentialStatus)
		r.Put("/credential", s.handleCredentialUpdate)
		r.Delete("/credential", s.handleCredentialDelete)
		r.Post("/credential/validate", s.handleCredentialValidate)

		r.Get("/channels", s.handleChannelList)
		r.Post("/channels", s.handleChannelAdd)
		r.Delete("/channels/{channelID}", s.handleChannelRemove)

		r.Post("/messages", s.handleCompose)
		r.Post("/messages/edit", s.handleEdit)

		r.Get("/drafts", s.handleDraftList)
		r.Post("/drafts", s.handleDraftSave)

		r.Get("/preferences", s.handlePreferencesGet)
		r.Put("/preferences", s.handlePreferencesUpdate)
		r.Post("/preferences/onboarding", s.handleOnboardingSeen)

		r.Get("/notifications", s.handleNotifications)
		r.Get("/announcement", s.handleAnnouncement)
	})

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}
	return s
}

// clientFor строит клиент Bot API для переданных учетных данных.
func (s *Server) clientFor(token string) *telegram.Client {
	opts := []telegram.ClientOption{
		telegram.WithLogger(s.log),
		telegram.WithTimeout(s.cfg.RequestTimeout()),
	}
	if s.cfg.Telegram.BaseURL != "" {
		opts = append(opts, telegram.WithBaseURL(s.cfg.Telegram.BaseURL))
	}
	return telegram.NewClient(token, opts...)
}

// SetAnnouncement сохраняет загруженное объявление для выдачи клиентам.
func (s *Server) SetAnnouncement(ann *domain.Announcement) {
	s.announcement.Store(ann)
}

// Handler возвращает корневой обработчик. Используется в тестах.
func (s *Server) Handler() http.Handler {
	return s.HTTPServer.Handler
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Завершение работы HTTP-сервера")
	return s.HTTPServer.Shutdown(ctx)
}
