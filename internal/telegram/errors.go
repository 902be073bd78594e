package telegram

import "fmt"

// APIError — структурированный отказ платформы: ответ пришел, но ok=false.
// Описание отдается оператору дословно.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return e.Description
}

// TransportError — сетевая ошибка или неразборчивый ответ. Клиент не
// повторяет запрос: повторы — забота вызывающей стороны.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("telegram %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
