// Package keyboard моделирует инлайн-клавиатуру сообщения: упорядоченные
// ряды кнопок, каждая из которых открывает URL или отправляет callback.
package keyboard

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// TargetKind определяет вариант цели кнопки.
type TargetKind int

const (
	// TargetURL — кнопка открывает абсолютный http(s) URL.
	TargetURL TargetKind = iota
	// TargetCallback — кнопка отправляет непрозрачную callback-строку.
	TargetCallback
)

// Button — кнопка инлайн-клавиатуры. Ровно одна из двух целей активна,
// направление выбирается в AddButton.
type Button struct {
	Text  string
	Kind  TargetKind
	Value string
}

// buttonJSON — проводной вид кнопки для Bot API и для черновиков.
type buttonJSON struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// MarshalJSON сериализует кнопку в формат inline_keyboard.
func (b Button) MarshalJSON() ([]byte, error) {
	wire := buttonJSON{Text: b.Text}
	switch b.Kind {
	case TargetCallback:
		wire.CallbackData = b.Value
	default:
		wire.URL = b.Value
	}
	return json.Marshal(wire)
}

// UnmarshalJSON восстанавливает кнопку из проводного формата.
func (b *Button) UnmarshalJSON(data []byte) error {
	var wire buttonJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	b.Text = wire.Text
	if wire.CallbackData != "" {
		b.Kind = TargetCallback
		b.Value = wire.CallbackData
		return nil
	}
	b.Kind = TargetURL
	b.Value = wire.URL
	return nil
}

// ErrMissingField возвращается, когда текст или цель кнопки пусты.
var ErrMissingField = errors.New("button text and target are required")

var urlPrefix = regexp.MustCompile(`^https?://`)

// Grid — упорядоченная последовательность рядов кнопок. Пустая сетка
// допустима: клавиатура просто не отправляется. Размеры рядов здесь не
// ограничиваются, лимиты платформы проявятся при отправке.
type Grid struct {
	rows [][]Button
}

// AddButton добавляет кнопку. Цель без префикса http(s):// дополняется
// до https://; если нормализованное значение начинается с http, кнопка
// становится URL-кнопкой, иначе исходная строка сохраняется как
// callback-нагрузка. Это сознательная эвристика, а не строгий валидатор.
func (g *Grid) AddButton(text, target string, newRow bool) error {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(target) == "" {
		return ErrMissingField
	}

	normalized := target
	if !urlPrefix.MatchString(target) {
		normalized = "https://" + target
	}

	btn := Button{Text: text}
	if strings.HasPrefix(normalized, "http") {
		btn.Kind = TargetURL
		btn.Value = normalized
	} else {
		btn.Kind = TargetCallback
		btn.Value = target
	}

	if newRow || len(g.rows) == 0 {
		g.rows = append(g.rows, []Button{btn})
		return nil
	}
	last := len(g.rows) - 1
	g.rows[last] = append(g.rows[last], btn)
	return nil
}

// RemoveRow удаляет ряд целиком. Частичное удаление не поддерживается.
func (g *Grid) RemoveRow(idx int) error {
	if idx < 0 || idx >= len(g.rows) {
		return errors.New("row index is out of range")
	}
	g.rows = append(g.rows[:idx], g.rows[idx+1:]...)
	return nil
}

// Rows возвращает копию рядов сетки.
func (g *Grid) Rows() [][]Button {
	out := make([][]Button, len(g.rows))
	for i, row := range g.rows {
		out[i] = append([]Button(nil), row...)
	}
	return out
}

// IsEmpty сообщает, что в сетке нет ни одной кнопки.
func (g *Grid) IsEmpty() bool {
	return len(g.rows) == 0
}

// MarshalJSON сериализует сетку как массив рядов inline_keyboard.
func (g Grid) MarshalJSON() ([]byte, error) {
	if g.rows == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(g.rows)
}

// UnmarshalJSON восстанавливает сетку из массива рядов.
func (g *Grid) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &g.rows)
}
