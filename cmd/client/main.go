package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"telegram-post-composer/internal/pkg/term"
)

type buttonFlags []string

func (b *buttonFlags) String() string { return strings.Join(*b, ";") }

func (b *buttonFlags) Set(v string) error {
	*b = append(*b, v)
	return nil
}

func main() {
	var (
		serverAddr string
		channel    string
		postLink   string
		mediaKind  string
		mediaPath  string
		mediaURL   string
		silent     bool
		protect    bool
		noPreview  bool
		spoiler    bool
		editText   bool
		editBtns   bool
		buttons    buttonFlags
	)
	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "Server address")
	flag.StringVar(&channel, "channel", "", "Target channel (@name or numeric id)")
	flag.StringVar(&postLink, "link", "", "Post permalink for edit mode (t.me/...)")
	flag.StringVar(&mediaKind, "kind", "", "Attachment kind: photo, video or document")
	flag.StringVar(&mediaPath, "file", "", "Local media file to upload")
	flag.StringVar(&mediaURL, "media-url", "", "Remote media URL")
	flag.BoolVar(&silent, "silent", false, "Send without notification")
	flag.BoolVar(&protect, "protect", false, "Protect content from forwarding")
	flag.BoolVar(&noPreview, "no-preview", false, "Disable link preview")
	flag.BoolVar(&spoiler, "spoiler", false, "Cover media with a spoiler")
	flag.BoolVar(&editText, "edit-text", false, "Edit mode: replace message text")
	flag.BoolVar(&editBtns, "edit-buttons", false, "Edit mode: replace inline keyboard")
	flag.Var(&buttons, "button", "Inline button as \"Text|target\", each on its own row (repeatable)")
	flag.Parse()

	html := strings.Join(flag.Args(), " ")

	ensureCredential(serverAddr)

	grid := buildGrid(buttons)

	if postLink != "" {
		editMessage(serverAddr, postLink, html, grid, editText || html != "", editBtns)
		return
	}

	if channel == "" {
		log.Fatal("Требуется канал: укажите -channel")
	}

	if mediaPath != "" {
		sendMultipart(serverAddr, channel, html, grid, mediaKind, mediaPath, mediaURL, silent, protect, spoiler)
		return
	}
	sendJSON(serverAddr, channel, html, grid, mediaKind, mediaURL, silent, protect, noPreview, spoiler)
}

// ensureCredential проверяет, что у сервера есть токен бота,
// и при необходимости запрашивает его со скрытым вводом.
func ensureCredential(serverAddr string) {
	resp, err := http.Get(serverAddr + "/api/v1/credential")
	if err != nil {
		log.Fatalf("Сервер недоступен: %v", err)
	}
	defer resp.Body.Close()

	var status struct {
		Configured bool `json:"configured"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		log.Fatalf("Не удалось декодировать ответ: %v", err)
	}
	if status.Configured {
		return
	}

	token, err := term.NewPrompt().Secret("Bot token")
	if err != nil {
		log.Fatalf("Не удалось прочитать токен: %v", err)
	}

	body, _ := json.Marshal(map[string]string{"token": token})
	req, err := http.NewRequest(http.MethodPut, serverAddr+"/api/v1/credential", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Не удалось создать запрос: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	putResp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Не удалось отправить токен: %v", err)
	}
	defer putResp.Body.Close()

	if putResp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(putResp.Body)
		log.Fatalf("Токен отклонен: %s", strings.TrimSpace(string(raw)))
	}

	var identity struct {
		Username string `json:"username"`
	}
	_ = json.NewDecoder(putResp.Body).Decode(&identity)
	fmt.Printf("Токен проверен и сохранен (бот @%s)\n", identity.Username)
}

// buildGrid собирает сетку кнопок из флагов "Text|target".
func buildGrid(buttons buttonFlags) [][]map[string]string {
	var grid [][]map[string]string
	for _, spec := range buttons {
		parts := strings.SplitN(spec, "|", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			log.Fatalf("Недопустимая кнопка %q, ожидается \"Text|target\"", spec)
		}
		target := parts[1]
		btn := map[string]string{"text": parts[0]}
		normalized := target
		if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
			normalized = "https://" + target
		}
		// Та же эвристика, что и в keyboard.Grid.AddButton.
		if strings.HasPrefix(normalized, "http") {
			btn["url"] = normalized
		} else {
			btn["callback_data"] = target
		}
		grid = append(grid, []map[string]string{btn})
	}
	return grid
}

func sendJSON(serverAddr, channel, html string, grid [][]map[string]string, kind, mediaURL string, silent, protect, noPreview, spoiler bool) {
	payload := map[string]any{
		"chat_ref": channel,
		"html":     html,
		"options": map[string]bool{
			"silent":               silent,
			"protect_content":      protect,
			"disable_link_preview": noPreview,
		},
	}
	if grid != nil {
		payload["buttons"] = grid
	}
	if kind != "" {
		payload["media"] = map[string]any{"kind": kind, "url": mediaURL, "spoiler": spoiler}
	}

	body, _ := json.Marshal(payload)
	resp, err := http.Post(serverAddr+"/api/v1/messages", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Не удалось отправить запрос: %v", err)
	}
	defer resp.Body.Close()
	reportSendResult(resp)
}

func sendMultipart(serverAddr, channel, html string, grid [][]map[string]string, kind, mediaPath, mediaURL string, silent, protect, spoiler bool) {
	if kind == "" {
		kind = "document"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	_ = writer.WriteField("chat_ref", channel)
	_ = writer.WriteField("html", html)
	_ = writer.WriteField("kind", kind)
	if mediaURL != "" {
		_ = writer.WriteField("media_url", mediaURL)
	}
	if silent {
		_ = writer.WriteField("silent", "true")
	}
	if protect {
		_ = writer.WriteField("protect_content", "true")
	}
	if spoiler {
		_ = writer.WriteField("spoiler", "true")
	}
	if grid != nil {
		raw, _ := json.Marshal(grid)
		_ = writer.WriteField("buttons", string(raw))
	}

	file, err := os.Open(mediaPath)
	if err != nil {
		log.Fatalf("Не удалось открыть файл %s: %v", mediaPath, err)
	}

	// Исходное имя файла сохраняется, включая не-ASCII символы.
	part, err := writer.CreateFormFile("media", filepath.Base(mediaPath))
	if err != nil {
		_ = file.Close()
		log.Fatalf("Не удалось создать файл формы: %v", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		_ = file.Close()
		log.Fatalf("Не удалось записать данные файла: %v", err)
	}
	if err := file.Close(); err != nil {
		log.Printf("Warning: failed to close file %s: %v", mediaPath, err)
	}

	// Важно закрыть writer, чтобы записать завершающую границу
	if err := writer.Close(); err != nil {
		log.Fatalf("Не удалось закрыть multipart writer: %v", err)
	}

	resp, err := http.Post(serverAddr+"/api/v1/messages", writer.FormDataContentType(), &body)
	if err != nil {
		log.Fatalf("Не удалось отправить запрос: %v", err)
	}
	defer resp.Body.Close()
	reportSendResult(resp)
}

func editMessage(serverAddr, postLink, html string, grid [][]map[string]string, updateText, updateButtons bool) {
	payload := map[string]any{
		"post_link":      postLink,
		"html":           html,
		"update_text":    updateText,
		"update_buttons": updateButtons,
	}
	if grid != nil {
		payload["buttons"] = grid
	}

	body, _ := json.Marshal(payload)
	resp, err := http.Post(serverAddr+"/api/v1/messages/edit", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Не удалось отправить запрос: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		log.Fatalf("Правка отклонена: %s", strings.TrimSpace(string(raw)))
	}
	fmt.Println("Сообщение обновлено")
}

func reportSendResult(resp *http.Response) {
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		log.Fatalf("Отправка отклонена: %s", strings.TrimSpace(string(raw)))
	}

	var result struct {
		MessageID int   `json:"message_id"`
		ChatID    int64 `json:"chat_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Fatalf("Не удалось декодировать ответ: %v", err)
	}
	fmt.Printf("Отправлено: message_id=%d chat_id=%d\n", result.MessageID, result.ChatID)
}
