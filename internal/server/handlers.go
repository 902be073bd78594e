package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-post-composer/internal/cache"
	"telegram-post-composer/internal/composer"
	"telegram-post-composer/internal/domain"
	"telegram-post-composer/internal/keyboard"
	"telegram-post-composer/internal/markup"
	"telegram-post-composer/internal/media"
	"telegram-post-composer/internal/notify"
	"telegram-post-composer/internal/prefs"
	"telegram-post-composer/internal/registry"
	"telegram-post-composer/internal/telegram"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			s.log.Error("Failed to encode response", "error", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

// dispatchStatus переводит ошибку диспетчеризации в HTTP-статус:
// локальная валидация и разбор ссылки это запрос клиента, отказ
// платформы и сбой транспорта это проблемы выше по течению.
func (s *Server) dispatchStatus(err error) int {
	var (
		verr     *composer.ValidationError
		perr     *composer.ParseError
		apiErr   *telegram.APIError
		transErr *telegram.TransportError
	)
	switch {
	case errors.Is(err, composer.ErrDispatchInFlight):
		return http.StatusConflict
	case errors.As(err, &verr), errors.As(err, &perr):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---- учетные данные ----

type credentialRequest struct {
	Token string `json:"token"`
}

// identityTTL задает срок жизни закешированной личности бота:
// повторная проверка в этом окне не ходит в Bot API.
const identityTTL = 5 * time.Minute

func identityFromUser(u *telegram.User) domain.BotIdentity {
	return domain.BotIdentity{
		ID:                      u.ID,
		IsBot:                   u.IsBot,
		DisplayName:             strings.TrimSpace(u.FirstName + " " + u.LastName),
		Username:                u.Username,
		CanJoinGroups:           u.CanJoinGroups,
		CanReadAllGroupMessages: u.CanReadAllGroupMessages,
		SupportsInlineQueries:   u.SupportsInlineQueries,
	}
}

func (s *Server) handleCredentialStatus(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]bool{
		"configured": s.prefs.Credential() != "",
	})
}

func (s *Server) handleCredentialUpdate(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		s.respondError(w, http.StatusBadRequest, "bot token required")
		return
	}

	user, err := s.clientFor(token).GetMe(r.Context())
	if err != nil {
		s.hub.Error(err.Error())
		s.respondError(w, s.dispatchStatus(err), err.Error())
		return
	}
	if old := s.prefs.Credential(); old != "" && old != token {
		s.identities.Invalidate(cache.Key(old))
	}
	if err := s.prefs.SetCredential(token); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to persist credential")
		return
	}

	identity := identityFromUser(user)
	s.identities.Put(cache.Key(token), identity, identityTTL)
	s.hub.Success("Credential validated")
	s.respondJSON(w, http.StatusOK, identity)
}

func (s *Server) handleCredentialDelete(w http.ResponseWriter, _ *http.Request) {
	if token := s.prefs.Credential(); token != "" {
		s.identities.Invalidate(cache.Key(token))
	}
	if err := s.prefs.SetCredential(""); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to clear credential")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleCredentialValidate(w http.ResponseWriter, r *http.Request) {
	token := s.prefs.Credential()
	if token == "" {
		s.respondError(w, http.StatusBadRequest, "bot token required")
		return
	}

	if identity, ok := s.identities.Get(cache.Key(token)); ok {
		s.respondJSON(w, http.StatusOK, identity)
		return
	}

	user, err := s.clientFor(token).GetMe(r.Context())
	if err != nil {
		s.respondError(w, s.dispatchStatus(err), err.Error())
		return
	}
	identity := identityFromUser(user)
	s.identities.Put(cache.Key(token), identity, identityTTL)
	s.respondJSON(w, http.StatusOK, identity)
}

// ---- каналы ----

func (s *Server) handleChannelList(w http.ResponseWriter, _ *http.Request) {
	channels := s.registry.Channels()
	if channels == nil {
		channels = []domain.SavedChannel{}
	}
	s.respondJSON(w, http.StatusOK, channels)
}

func (s *Server) handleChannelAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token := s.prefs.Credential()
	if token == "" {
		s.respondError(w, http.StatusBadRequest, "bot token required")
		return
	}

	saved, err := s.registry.AddChannel(r.Context(), s.clientFor(token), req.Target)
	if errors.Is(err, registry.ErrAlreadySaved) {
		s.hub.Info("Chat already saved")
		s.respondJSON(w, http.StatusOK, map[string]any{"channel": saved, "duplicate": true})
		return
	}
	if err != nil {
		s.hub.Error(err.Error())
		s.respondError(w, s.dispatchStatus(err), err.Error())
		return
	}

	s.hub.Success("Channel added: " + saved.Title)
	s.respondJSON(w, http.StatusCreated, map[string]any{"channel": saved})
}

func (s *Server) handleChannelRemove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "channelID"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	if err := s.registry.RemoveChannel(id); err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---- отправка и правка ----

type composeRequest struct {
	ChatRef  string             `json:"chat_ref"`
	Document *markup.Node       `json:"document,omitempty"`
	HTML     string             `json:"html,omitempty"`
	Buttons  keyboard.Grid      `json:"buttons,omitempty"`
	Options  domain.SendOptions `json:"options"`
	Media    *mediaRequest      `json:"media,omitempty"`
}

type mediaRequest struct {
	Kind    string `json:"kind"`
	URL     string `json:"url,omitempty"`
	Spoiler bool   `json:"spoiler,omitempty"`
}

func mediaKind(name string) media.Kind {
	switch name {
	case "photo":
		return media.Photo
	case "video":
		return media.Video
	case "document":
		return media.Document
	default:
		return media.None
	}
}

// content собирает разметку запроса: дерево документа конвертируется,
// готовая разметка принимается как есть.
func (cr *composeRequest) content() markup.Formatted {
	if cr.Document != nil {
		return markup.Convert(cr.Document)
	}
	return markup.Formatted{HTML: strings.TrimSpace(cr.HTML), Preview: strings.TrimSpace(cr.HTML)}
}

// parseComposeRequest разбирает JSON-тело или multipart-форму с файлом.
func (s *Server) parseComposeRequest(r *http.Request) (*composeRequest, *media.Upload, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		var req composeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, nil, errors.New("invalid request body")
		}
		return &req, nil, nil
	}

	maxSize := int64(s.cfg.Server.MaxUploadSizeMB) << 20
	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, nil, errors.New("failed to parse multipart form")
	}

	req := composeRequest{
		ChatRef: r.FormValue("chat_ref"),
		HTML:    r.FormValue("html"),
		Options: domain.SendOptions{
			Silent:             r.FormValue("silent") == "true",
			ProtectContent:     r.FormValue("protect_content") == "true",
			DisableLinkPreview: r.FormValue("disable_link_preview") == "true",
		},
	}
	if doc := r.FormValue("document"); doc != "" {
		var node markup.Node
		if err := json.Unmarshal([]byte(doc), &node); err != nil {
			return nil, nil, errors.New("invalid document tree")
		}
		req.Document = &node
	}
	if buttons := r.FormValue("buttons"); buttons != "" {
		if err := json.Unmarshal([]byte(buttons), &req.Buttons); err != nil {
			return nil, nil, errors.New("invalid button grid")
		}
	}
	req.Media = &mediaRequest{
		Kind:    r.FormValue("kind"),
		URL:     r.FormValue("media_url"),
		Spoiler: r.FormValue("spoiler") == "true",
	}

	file, header, err := r.FormFile("media")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return &req, nil, nil
		}
		return nil, nil, errors.New("failed to read media file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, errors.New("failed to read media file")
	}
	return &req, &media.Upload{Data: data, Filename: header.Filename}, nil
}

// applyComposeRequest переносит запрос в состояние композера.
// Вложение собирается локально и подменяется целиком.
func (s *Server) applyComposeRequest(req *composeRequest, upload *media.Upload) {
	s.comp.SetCredential(s.prefs.Credential())
	s.comp.SetTarget(domain.ChatRef(strings.TrimSpace(req.ChatRef)))
	s.comp.SetContent(req.content())
	s.comp.SetGrid(req.Buttons)
	s.comp.SetOptions(req.Options)

	var att media.Attachment
	if req.Media != nil {
		if kind := mediaKind(req.Media.Kind); kind != media.None {
			att.SetKind(kind)
			if upload != nil {
				att.SetUpload(upload.Data, upload.Filename)
			} else if req.Media.URL != "" {
				att.SetRemoteURL(req.Media.URL)
			}
			att.SetSpoiler(req.Media.Spoiler)
		}
	}
	s.comp.SetAttachment(att)
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	req, upload, err := s.parseComposeRequest(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Композер один на сервер: применение запроса и диспетчеризация
	// должны быть атомарны, параллельный запрос получает отказ.
	if !s.dispatchMu.TryLock() {
		s.respondError(w, http.StatusConflict, composer.ErrDispatchInFlight.Error())
		return
	}
	defer s.dispatchMu.Unlock()

	s.comp.SetMode(composer.ModeCompose)
	s.applyComposeRequest(req, upload)

	msg, err := s.comp.Dispatch(r.Context())
	if err != nil {
		s.respondError(w, s.dispatchStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message_id": msg.MessageID,
		"chat_id":    msg.Chat.ID,
	})
}

type editRequest struct {
	PostLink      string        `json:"post_link"`
	Document      *markup.Node  `json:"document,omitempty"`
	HTML          string        `json:"html,omitempty"`
	Buttons       keyboard.Grid `json:"buttons,omitempty"`
	UpdateText    bool          `json:"update_text"`
	UpdateButtons bool          `json:"update_buttons"`
	HasMedia      bool          `json:"has_media"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !s.dispatchMu.TryLock() {
		s.respondError(w, http.StatusConflict, composer.ErrDispatchInFlight.Error())
		return
	}
	defer s.dispatchMu.Unlock()

	s.comp.SetMode(composer.ModeEdit)
	if _, err := s.comp.SetEditLink(req.PostLink); err != nil {
		s.hub.Error("Use format: t.me/user/123")
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	compose := composeRequest{Document: req.Document, HTML: req.HTML, Buttons: req.Buttons}
	s.applyComposeRequest(&compose, nil)
	// Вид вложения сигнализирует, что оригинал несет медиа и текст
	// правится как подпись.
	if req.HasMedia {
		att := s.comp.Attachment()
		att.SetKind(media.Photo)
		s.comp.SetAttachment(att)
	}
	s.comp.SetEditScope(composer.EditScope{Text: req.UpdateText, Buttons: req.UpdateButtons})

	if _, err := s.comp.Dispatch(r.Context()); err != nil {
		s.respondError(w, s.dispatchStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ---- черновики ----

func (s *Server) handleDraftList(w http.ResponseWriter, _ *http.Request) {
	list := s.drafts.List()
	if list == nil {
		list = []domain.Draft{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleDraftSave(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content := req.content()
	if content.IsEmpty() {
		s.respondError(w, http.StatusBadRequest, "content empty")
		return
	}

	draft, err := s.drafts.Save(domain.ChatRef(req.ChatRef), content, req.Buttons)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to save draft")
		return
	}
	s.hub.Success("Saved to drafts")
	s.respondJSON(w, http.StatusCreated, draft)
}

// ---- настройки ----

type preferencesResponse struct {
	Theme             prefs.Theme  `json:"theme"`
	Accent            prefs.Accent `json:"accent"`
	DisplayName       string       `json:"display_name"`
	HasSeenOnboarding bool         `json:"has_seen_onboarding"`
}

func (s *Server) preferencesSnapshot() preferencesResponse {
	return preferencesResponse{
		Theme:             s.prefs.Theme(),
		Accent:            s.prefs.Accent(),
		DisplayName:       s.prefs.DisplayName(),
		HasSeenOnboarding: s.prefs.HasSeenOnboarding(),
	}
}

func (s *Server) handlePreferencesGet(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.preferencesSnapshot())
}

func (s *Server) handlePreferencesUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme       *prefs.Theme  `json:"theme,omitempty"`
		Accent      *prefs.Accent `json:"accent,omitempty"`
		DisplayName *string       `json:"display_name,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Theme != nil {
		if err := s.prefs.SetTheme(*req.Theme); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Accent != nil {
		if err := s.prefs.SetAccent(*req.Accent); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.DisplayName != nil {
		if err := s.prefs.SetDisplayName(*req.DisplayName); err != nil {
			s.respondError(w, http.StatusInternalServerError, "failed to persist display name")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, s.preferencesSnapshot())
}

func (s *Server) handleOnboardingSeen(w http.ResponseWriter, _ *http.Request) {
	if err := s.prefs.MarkOnboardingSeen(); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to persist onboarding flag")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---- уведомления и объявление ----

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	list := s.hub.Drain()
	if list == nil {
		list = []notify.Notification{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleAnnouncement(w http.ResponseWriter, _ *http.Request) {
	ann := s.announcement.Load()
	if ann == nil {
		s.respondJSON(w, http.StatusNoContent, nil)
		return
	}
	s.respondJSON(w, http.StatusOK, ann)
}
