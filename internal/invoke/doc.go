// Package invoke выполняет внешние вызовы узлов Task и AsyncTask.
//
// Ресурс узла определяет способ вызова по схеме:
//   - local:<name>       — обработчик в процессе (Registry)
//   - http://, https://  — POST JSON на endpoint (HTTP)
//   - queue:<name>       — публикация step.invoke в RabbitMQ (Queue, только async)
//
// Синхронный вызов возвращает результат. Асинхронный вызов (Request.Token
// непуст) только отправляет работу; результат приходит позже через
// Completer по тому же токену.
package invoke
