// Package announce загружает удаленное объявление: один GET-запрос
// JSON-документа при старте. Любой сбой загрузки молча игнорируется,
// объявление просто не показывается.
package announce

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"telegram-post-composer/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Fetcher выполняет одноразовую загрузку объявления.
type Fetcher struct {
	url  string
	http *resty.Client
	log  *slog.Logger
}

// NewFetcher создает загрузчик. Пустой URL означает, что объявления
// отключены и Fetch всегда возвращает nil.
func NewFetcher(url string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		url:  url,
		http: resty.New().SetTimeout(defaultTimeout),
		log:  logger,
	}
}

// Fetch загружает объявление. Возвращает nil при любом сбое: недоступный
// хост, не-2xx ответ, неразборчивый документ или выключенный флаг show.
func (f *Fetcher) Fetch(ctx context.Context) *domain.Announcement {
	if f.url == "" {
		return nil
	}

	resp, err := f.http.R().SetContext(ctx).Get(f.url)
	if err != nil {
		f.log.DebugContext(ctx, "Announcement fetch failed", "error", err)
		return nil
	}
	if resp.IsError() {
		f.log.DebugContext(ctx, "Announcement fetch rejected", "status", resp.StatusCode())
		return nil
	}

	var ann domain.Announcement
	if err := json.Unmarshal(resp.Body(), &ann); err != nil {
		f.log.DebugContext(ctx, "Announcement document malformed", "error", err)
		return nil
	}
	if !ann.Show {
		return nil
	}
	return &ann
}
