// Package telemetry обеспечивает наблюдаемость сервисов Launchpad.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики runs, узлов, токенов и уведомлений
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
