package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownExecutor — нет executor'а для ресурса шага.
	ErrUnknownExecutor = errors.New("unknown executor")

	// ErrInvalidStep — сообщение step.invoke без токена или ресурса.
	ErrInvalidStep = errors.New("invalid step")

	// ErrHTTPRequest — HTTP-запрос завершился ошибкой.
	ErrHTTPRequest = errors.New("http request failed")

	// ErrMissingClusterName — в конфигурации кластера нет Name.
	ErrMissingClusterName = errors.New("cluster configuration has no name")
)
