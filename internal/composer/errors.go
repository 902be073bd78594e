package composer

import (
	"errors"
	"fmt"
)

// ValidationCode — код локальной ошибки, обнаруженной до обращения к сети.
type ValidationCode string

const (
	// CodeMissingCredential — учетные данные бота не заданы.
	CodeMissingCredential ValidationCode = "missing_credential"
	// CodeMissingTarget — цель отправки или редактирования не выбрана.
	CodeMissingTarget ValidationCode = "missing_target"
	// CodeEmptyContent — ни текста, ни вложения.
	CodeEmptyContent ValidationCode = "empty_content"
	// CodeNothingToUpdate — в режиме правки не выбрана ни одна область.
	CodeNothingToUpdate ValidationCode = "nothing_to_update"
)

// ValidationError блокирует диспетчеризацию до сетевого запроса.
type ValidationError struct {
	Code ValidationCode
}

func (e *ValidationError) Error() string {
	switch e.Code {
	case CodeMissingCredential:
		return "bot token required"
	case CodeMissingTarget:
		return "select channel first"
	case CodeEmptyContent:
		return "message text is empty"
	case CodeNothingToUpdate:
		return "nothing to update"
	default:
		return fmt.Sprintf("validation failed: %s", string(e.Code))
	}
}

// ParseError сообщает о невалидном пермалинке сообщения.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid post link %q, expected format t.me/<channel>/<id>", e.Input)
}

// ErrDispatchInFlight возвращается при попытке повторной диспетчеризации,
// пока предыдущая еще выполняется.
var ErrDispatchInFlight = errors.New("dispatch already in flight")
