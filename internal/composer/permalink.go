package composer

import (
	"net/url"
	"strconv"
	"strings"

	"telegram-post-composer/internal/domain"
)

// ParsePostLink разбирает пермалинк сообщения вида
// https://t.me/c/<internalId>/<messageId> или https://t.me/<username>/<messageId>.
// Путь через сегмент "c" дает внутренний числовой идентификатор, к которому
// добавляется префикс -100; иначе предпоследний сегмент читается как
// публичное имя канала. Схема у ссылки необязательна.
func ParsePostLink(raw string) (domain.EditTarget, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.EditTarget{}, &ParseError{Input: raw}
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return domain.EditTarget{}, &ParseError{Input: raw}
	}

	var parts []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	if len(parts) < 2 {
		return domain.EditTarget{}, &ParseError{Input: raw}
	}

	msgID, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || msgID <= 0 {
		return domain.EditTarget{}, &ParseError{Input: raw}
	}

	for i, seg := range parts {
		if seg == "c" {
			if i+1 >= len(parts)-1 {
				return domain.EditTarget{}, &ParseError{Input: raw}
			}
			return domain.EditTarget{
				ChatRef:   domain.ChatRef("-100" + parts[i+1]),
				MessageID: msgID,
			}, nil
		}
	}

	username := strings.TrimPrefix(parts[len(parts)-2], "@")
	if username == "" {
		return domain.EditTarget{}, &ParseError{Input: raw}
	}
	return domain.EditTarget{
		ChatRef:   domain.ChatRef("@" + username),
		MessageID: msgID,
	}, nil
}
