// Package worker выполняет асинхронные шаги launch-функций.
//
// # Обзор
//
// Координатор публикует AsyncTask-узлы с ресурсом "queue:<name>" в очередь
// steps.invoke. Worker получает шаг, выполняет его executor'ом <name> и
// публикует завершение с токеном корреляции в steps.completed, откуда его
// забирает координатор.
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди steps.invoke.
//
//	w := worker.New(worker.Config{
//	    Publisher: publisher,
//	    Conn:      mqConn,
//	    Registry:  registry,
//	    Retry:     &worker.RetryPolicy{MaxAttempts: 3, Backoff: "exponential"},
//	    Logger:    logger,
//	})
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Executors
//
//   - http — синхронный HTTP-запрос, ответ становится результатом
//   - forward — передача шага с токеном внешней системе; завершение
//     приходит позже через API токенов
//   - delay — задержка на указанное количество секунд
//   - echo — возвращает полезную нагрузку
//   - start-cluster — регистрирует запуск кластера (StartClusterExecutor)
//   - override-cluster-configs, fail-if-cluster-running — обработчики
//     pipeline через HandlerExecutor
//
// # Retry
//
// Retry выполняется в процессе, а не через requeue в RabbitMQ.
//
// Стратегии backoff:
//   - "exponential": delay = initialDelay * 2^(attempt-1), capped at maxDelay
//   - "fixed": delay = initialDelay
//
// Для HTTP можно указать OnStatus — список кодов, при которых retry.
//
// # Ошибки
//
// Пакет различает два уровня ошибок:
//   - Инфраструктурные (error от Execute) — сеть упала, БД недоступна
//   - Логические (ExecutionResult.Error) — HTTP 500, кластер уже работает
//
// Инфраструктурные всегда retriable, кроме истёкшего таймаута шага.
// Логические — зависят от OnStatus. Исчерпанные попытки публикуются как
// ошибка шага; вид ошибки — ExecutionResult.ErrorKind или TaskFailed,
// для таймаута — Timeout.
package worker
