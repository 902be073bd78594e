package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-post-composer/internal/domain"
	"telegram-post-composer/internal/drafts"
	"telegram-post-composer/internal/notify"
	"telegram-post-composer/internal/pkg/config"
	"telegram-post-composer/internal/prefs"
	"telegram-post-composer/internal/registry"
	"telegram-post-composer/internal/storage"
)

const testToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

// fakeBot эмулирует Bot API: принимает вызовы методов и записывает их.
// Ненулевой release задерживает ответ sendMessage до закрытия канала.
type fakeBot struct {
	mu       sync.Mutex
	calls    []string
	lastJSON map[string]any
	lastForm map[string]string
	filename string
	release  chan struct{}
}

func (f *fakeBot) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 2 || !strings.HasPrefix(parts[0], "bot") {
			http.NotFound(w, r)
			return
		}
		token := strings.TrimPrefix(parts[0], "bot")
		method := parts[1]

		f.mu.Lock()
		release := f.release
		f.calls = append(f.calls, method)
		f.lastJSON = nil
		f.lastForm = nil
		f.filename = ""
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			_ = r.ParseMultipartForm(64 << 20)
			f.lastForm = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				if len(v) > 0 {
					f.lastForm[k] = v[0]
				}
			}
			for field, files := range r.MultipartForm.File {
				if len(files) > 0 {
					f.lastForm[field] = "<file>"
					f.filename = files[0].Filename
				}
			}
		} else {
			body, _ := io.ReadAll(r.Body)
			if len(body) > 0 {
				_ = json.Unmarshal(body, &f.lastJSON)
			}
		}
		f.mu.Unlock()

		if method == "sendMessage" && release != nil {
			<-release
		}

		w.Header().Set("Content-Type", "application/json")
		if token != testToken {
			fmt.Fprint(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
			return
		}

		switch method {
		case "getMe":
			fmt.Fprint(w, `{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Poster","username":"poster_bot"}}`)
		case "getChat":
			chatID, _ := f.jsonField("chat_id")
			if chatID == "@example" || chatID == "-100987" {
				fmt.Fprint(w, `{"ok":true,"result":{"id":-100987,"title":"Example Channel","type":"channel"}}`)
				return
			}
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
		case "sendMessage", "sendPhoto", "sendVideo", "sendDocument":
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":99,"date":0,"chat":{"id":-100987,"type":"channel"}}}`)
		case "editMessageText", "editMessageCaption", "editMessageReplyMarkup":
			fmt.Fprint(w, `{"ok":true,"result":true}`)
		default:
			fmt.Fprint(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
		}
	})
}

func (f *fakeBot) jsonField(key string) (string, bool) {
	if f.lastJSON == nil {
		return "", false
	}
	v, ok := f.lastJSON[key].(string)
	return v, ok
}

func (f *fakeBot) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

type testEnv struct {
	api *httptest.Server
	bot *fakeBot
	srv *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	bot := &fakeBot{}
	botSrv := httptest.NewServer(bot.handler())
	t.Cleanup(botSrv.Close)

	cfg := &config.Config{
		Server: config.Server{
			Host:                   "127.0.0.1",
			Port:                   8080,
			ReadTimeoutSeconds:     5,
			WriteTimeoutSeconds:    5,
			IdleTimeoutSeconds:     5,
			ShutdownTimeoutSeconds: 5,
			MaxUploadSizeMB:        10,
		},
		Storage:  config.Storage{Path: filepath.Join(t.TempDir(), "store.json")},
		Telegram: config.Telegram{BaseURL: botSrv.URL, RequestTimeoutSeconds: 5},
		Logging:  config.Logging{Level: "error", Format: "json"},
	}

	st, err := storage.Open(cfg.Storage.Path)
	require.NoError(t, err)
	reg, err := registry.NewRegistry(st)
	require.NoError(t, err)
	draftStore, err := drafts.NewStore(st)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(cfg, logger, Deps{
		Prefs:    prefs.Load(st),
		Registry: reg,
		Drafts:   draftStore,
		Hub:      notify.NewHub(logger),
	})

	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return &testEnv{api: api, bot: bot, srv: srv}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.api.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (e *testEnv) setCredential(t *testing.T) {
	t.Helper()
	resp := e.request(t, http.MethodPut, "/api/v1/credential", map[string]string{"token": testToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestCredentialLifecycle(t *testing.T) {
	env := newTestEnv(t)

	t.Run("статус без учетных данных", func(t *testing.T) {
		resp := env.request(t, http.MethodGet, "/api/v1/credential", nil)
		var body map[string]bool
		decodeBody(t, resp, &body)
		assert.False(t, body["configured"])
	})

	t.Run("невалидный токен отклоняется", func(t *testing.T) {
		resp := env.request(t, http.MethodPut, "/api/v1/credential", map[string]string{"token": "999999:invalid-token-value-abcdefgh123456789"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("валидный токен сохраняется", func(t *testing.T) {
		resp := env.request(t, http.MethodPut, "/api/v1/credential", map[string]string{"token": testToken})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var identity domain.BotIdentity
		decodeBody(t, resp, &identity)
		assert.Equal(t, int64(42), identity.ID)
		assert.Equal(t, "poster_bot", identity.Username)

		status := env.request(t, http.MethodGet, "/api/v1/credential", nil)
		var body map[string]bool
		decodeBody(t, status, &body)
		assert.True(t, body["configured"])
	})

	t.Run("ревалидация по сохраненному токену", func(t *testing.T) {
		env.bot.mu.Lock()
		callsBefore := len(env.bot.calls)
		env.bot.mu.Unlock()

		resp := env.request(t, http.MethodPost, "/api/v1/credential/validate", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var identity domain.BotIdentity
		decodeBody(t, resp, &identity)
		assert.Equal(t, int64(42), identity.ID)

		// Личность берется из кеша, повторного вызова getMe нет.
		env.bot.mu.Lock()
		assert.Len(t, env.bot.calls, callsBefore)
		env.bot.mu.Unlock()
	})

	t.Run("удаление учетных данных", func(t *testing.T) {
		resp := env.request(t, http.MethodDelete, "/api/v1/credential", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		validate := env.request(t, http.MethodPost, "/api/v1/credential/validate", nil)
		defer validate.Body.Close()
		assert.Equal(t, http.StatusBadRequest, validate.StatusCode)
	})
}

func TestChannels(t *testing.T) {
	env := newTestEnv(t)

	t.Run("добавление без токена отклоняется", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/channels", map[string]string{"target": "example"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	env.setCredential(t)

	t.Run("успешное добавление", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/channels", map[string]string{"target": "example"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var body struct {
			Channel domain.SavedChannel `json:"channel"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, int64(-100987), body.Channel.ID)
		assert.Equal(t, "Example Channel", body.Channel.Title)
	})

	t.Run("дубликат сообщается без ошибки", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/channels", map[string]string{"target": "@example"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Duplicate bool `json:"duplicate"`
		}
		decodeBody(t, resp, &body)
		assert.True(t, body.Duplicate)
	})

	t.Run("неизвестный чат отклоняется", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/channels", map[string]string{"target": "@nope"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("список и удаление", func(t *testing.T) {
		resp := env.request(t, http.MethodGet, "/api/v1/channels", nil)
		var list []domain.SavedChannel
		decodeBody(t, resp, &list)
		require.Len(t, list, 1)

		del := env.request(t, http.MethodDelete, "/api/v1/channels/-100987", nil)
		del.Body.Close()
		assert.Equal(t, http.StatusNoContent, del.StatusCode)

		resp = env.request(t, http.MethodGet, "/api/v1/channels", nil)
		list = nil
		decodeBody(t, resp, &list)
		assert.Empty(t, list)
	})
}

func TestCompose(t *testing.T) {
	env := newTestEnv(t)
	env.setCredential(t)

	t.Run("текстовое сообщение из дерева документа", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/messages", map[string]any{
			"chat_ref": "@example",
			"document": map[string]any{
				"tag": "div",
				"children": []any{
					map[string]any{"tag": "b", "children": []any{map[string]any{"text": "привет"}}},
				},
			},
			"buttons": [][]map[string]string{{{"text": "Open", "url": "https://example.com"}}},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		decodeBody(t, resp, &body)
		assert.Equal(t, float64(99), body["message_id"])

		assert.Equal(t, "sendMessage", env.bot.lastCall())
		text, _ := env.bot.jsonField("text")
		assert.Equal(t, "<b>привет</b>", text)
		mode, _ := env.bot.jsonField("parse_mode")
		assert.Equal(t, "HTML", mode)
	})

	t.Run("пустое содержимое отклоняется", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/messages", map[string]any{"chat_ref": "@example"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("фото загрузкой через multipart", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("chat_ref", "@example"))
		require.NoError(t, mw.WriteField("html", "<i>подпись</i>"))
		require.NoError(t, mw.WriteField("kind", "photo"))
		require.NoError(t, mw.WriteField("spoiler", "true"))
		fw, err := mw.CreateFormFile("media", "кот 🐈.jpg")
		require.NoError(t, err)
		_, err = fw.Write([]byte{0xFF, 0xD8, 0xFF})
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, env.api.URL+"/api/v1/messages", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "sendPhoto", env.bot.lastCall())
		assert.Equal(t, "кот 🐈.jpg", env.bot.filename)
		assert.Equal(t, "true", env.bot.lastForm["has_spoiler"])
		assert.Equal(t, "<i>подпись</i>", env.bot.lastForm["caption"])
	})
}

func TestEdit(t *testing.T) {
	env := newTestEnv(t)
	env.setCredential(t)

	t.Run("невалидный пермалинк", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/messages/edit", map[string]any{
			"post_link":   "https://t.me/mychannel",
			"html":        "<b>new</b>",
			"update_text": true,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("правка текста", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/messages/edit", map[string]any{
			"post_link":   "https://t.me/c/987/55",
			"html":        "<b>new</b>",
			"update_text": true,
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "editMessageText", env.bot.lastCall())

		chatID, _ := env.bot.jsonField("chat_id")
		assert.Equal(t, "-100987", chatID)
	})

	t.Run("правка подписи при медиа-оригинале", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/messages/edit", map[string]any{
			"post_link":   "https://t.me/c/987/55",
			"html":        "<b>caption</b>",
			"update_text": true,
			"has_media":   true,
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "editMessageCaption", env.bot.lastCall())
	})

	t.Run("снятие клавиатуры пустой сеткой", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/messages/edit", map[string]any{
			"post_link":      "https://t.me/c/987/55",
			"html":           "<b>kept</b>",
			"update_buttons": true,
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "editMessageReplyMarkup", env.bot.lastCall())

		env.bot.mu.Lock()
		markup := env.bot.lastJSON["reply_markup"]
		env.bot.mu.Unlock()
		require.NotNil(t, markup)
	})

	t.Run("ни одна область не выбрана", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/messages/edit", map[string]any{
			"post_link": "https://t.me/c/987/55",
			"html":      "<b>text</b>",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestDrafts(t *testing.T) {
	env := newTestEnv(t)

	t.Run("пустое содержимое отклоняется", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/drafts", map[string]any{"chat_ref": "@example"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("сохранение и список", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/drafts", map[string]any{
			"chat_ref": "@example",
			"html":     "<b>draft</b>",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var draft domain.Draft
		decodeBody(t, resp, &draft)
		assert.NotEmpty(t, draft.ID)

		list := env.request(t, http.MethodGet, "/api/v1/drafts", nil)
		var items []domain.Draft
		decodeBody(t, list, &items)
		require.Len(t, items, 1)
		assert.Equal(t, "<b>draft</b>", items[0].HTML)
	})
}

func TestPreferences(t *testing.T) {
	env := newTestEnv(t)

	t.Run("значения по умолчанию", func(t *testing.T) {
		resp := env.request(t, http.MethodGet, "/api/v1/preferences", nil)
		var body preferencesResponse
		decodeBody(t, resp, &body)
		assert.Equal(t, prefs.ThemeSystem, body.Theme)
		assert.Equal(t, prefs.AccentEmerald, body.Accent)
		assert.False(t, body.HasSeenOnboarding)
	})

	t.Run("обновление темы и имени", func(t *testing.T) {
		resp := env.request(t, http.MethodPut, "/api/v1/preferences", map[string]string{
			"theme":        "dark",
			"display_name": "Оператор",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body preferencesResponse
		decodeBody(t, resp, &body)
		assert.Equal(t, prefs.ThemeDark, body.Theme)
		assert.Equal(t, "Оператор", body.DisplayName)
	})

	t.Run("неизвестная тема отклоняется", func(t *testing.T) {
		resp := env.request(t, http.MethodPut, "/api/v1/preferences", map[string]string{"theme": "neon"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("онбординг отмечается один раз", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/preferences/onboarding", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		get := env.request(t, http.MethodGet, "/api/v1/preferences", nil)
		var body preferencesResponse
		decodeBody(t, get, &body)
		assert.True(t, body.HasSeenOnboarding)
	})
}

func TestNotificationsDrained(t *testing.T) {
	env := newTestEnv(t)
	env.setCredential(t)

	resp := env.request(t, http.MethodGet, "/api/v1/notifications", nil)
	var list []notify.Notification
	decodeBody(t, resp, &list)
	require.NotEmpty(t, list)

	resp = env.request(t, http.MethodGet, "/api/v1/notifications", nil)
	list = nil
	decodeBody(t, resp, &list)
	assert.Empty(t, list)
}

func TestAnnouncement(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/api/v1/announcement", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	env.srv.SetAnnouncement(&domain.Announcement{Show: true, Title: "Maintenance", Text: "Back soon"})

	resp = env.request(t, http.MethodGet, "/api/v1/announcement", nil)
	var ann domain.Announcement
	decodeBody(t, resp, &ann)
	assert.Equal(t, "Maintenance", ann.Title)
}

// Композер один на сервер, поэтому второй запрос во время отправки
// получает 409, а не перетирает состояние первого. Проверяется под
// детектором гонок.
func TestConcurrentComposeRejected(t *testing.T) {
	env := newTestEnv(t)
	env.setCredential(t)

	release := make(chan struct{})
	env.bot.mu.Lock()
	env.bot.release = release
	env.bot.mu.Unlock()

	payload := map[string]any{"chat_ref": "@example", "html": "<b>первый</b>"}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	first := make(chan int, 1)
	go func() {
		resp, err := http.Post(env.api.URL+"/api/v1/messages", "application/json", bytes.NewReader(raw))
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()

	require.Eventually(t, func() bool {
		return env.bot.lastCall() == "sendMessage"
	}, time.Second, 5*time.Millisecond)

	conflict := env.request(t, http.MethodPost, "/api/v1/messages", map[string]any{
		"chat_ref": "@example",
		"html":     "<b>второй</b>",
	})
	conflict.Body.Close()
	assert.Equal(t, http.StatusConflict, conflict.StatusCode)

	close(release)
	assert.Equal(t, http.StatusOK, <-first)
}
