package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	daemon "github.com/sevlyar/go-daemon"

	"telegram-post-composer/internal/announce"
	"telegram-post-composer/internal/cache"
	"telegram-post-composer/internal/drafts"
	applog "telegram-post-composer/internal/log"
	"telegram-post-composer/internal/notify"
	"telegram-post-composer/internal/pkg/config"
	"telegram-post-composer/internal/prefs"
	"telegram-post-composer/internal/registry"
	"telegram-post-composer/internal/server"
	"telegram-post-composer/internal/storage"
)

// cacheCleanupInterval — период выметания устаревших записей кеша личностей.
const cacheCleanupInterval = 10 * time.Minute

func main() {
	daemonize := flag.Bool("daemon", false, "запустить сервер в фоновом режиме")
	flag.Parse()

	if *daemonize {
		dctx := &daemon.Context{
			PidFileName: "composer.pid",
			PidFilePerm: 0o644,
			LogFileName: "composer.log",
			LogFilePerm: 0o640,
			Umask:       0o27,
		}
		child, err := dctx.Reborn()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to daemonize: %v\n", err)
			os.Exit(1)
		}
		if child != nil {
			// Родительский процесс завершается, сервер продолжает в потомке.
			return
		}
		defer func() { _ = dctx.Release() }()
	}

	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализация логгера с маскировкой токенов
	logger := applog.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// 4. Инициализация зависимостей
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	reg, err := registry.NewRegistry(store)
	if err != nil {
		return fmt.Errorf("failed to load channel registry: %w", err)
	}
	draftStore, err := drafts.NewStore(store)
	if err != nil {
		return fmt.Errorf("failed to load drafts: %w", err)
	}

	// 5. Создание HTTP-сервера
	identities := cache.NewCacheStore()
	identities.StartCleanupTicker(appCtx, cacheCleanupInterval)

	srv := server.New(cfg, logger, server.Deps{
		Prefs:      prefs.Load(store),
		Registry:   reg,
		Drafts:     draftStore,
		Hub:        notify.NewHub(logger),
		Identities: identities,
	})

	// Объявление загружается в фоне и не блокирует старт.
	go func() {
		if ann := announce.NewFetcher(cfg.Announcement.URL, logger).Fetch(appCtx); ann != nil {
			srv.SetAnnouncement(ann)
			logger.Info("Announcement loaded", "title", ann.Title)
		}
	}()

	// 6. Запуск сервера и graceful shutdown
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		slog.Info("Starting server", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Signal received, shutting down...")
	appCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	<-serverDone
	slog.Info("Application exited gracefully")
	return nil
}
