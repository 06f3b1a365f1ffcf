// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go                 — Handler с DI (хранилища, publisher, resolver, logger)
//   - routes.go                  — регистрация маршрутов
//   - middleware.go              — middleware (logging, recovery)
//   - response.go                — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                     — Data Transfer Objects (request/response)
//   - configuration_handler.go   — обработчики для /configurations
//   - launch_function_handler.go — обработчики для /launch-functions
//   - run_handler.go             — обработчики для /runs
//   - token_handler.go           — callbacks асинхронных шагов /tokens
//
// API не выполняет runs: он создаёт PENDING run и публикует run.pending,
// выполнение ведёт координатор.
package api
