// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — обменники, очереди, привязки
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Публикация идёт через общий канал соединения, каждый Consumer
// открывает свой. После переподключения все consumer'ы получают
// уведомление через Connection.Reconnected и подписываются заново.
//
// Ошибка обработчика возвращает сообщение в очередь один раз,
// повторная ошибка или mq.Permanent отправляет его в DLQ.
//
// Типы сообщений:
//   - run.pending     — новый run ожидает выполнения
//   - run.cancel      — запрос отмены run
//   - step.invoke     — асинхронный шаг для исполнителя
//   - step.completed  — завершение асинхронного шага по токену
//   - notification    — уведомление терминального узла
package mq
