// Package coordinator выполняет графы workflow.
//
// Coordinator ведёт один run от начального узла до терминального:
//   - Task вызывает Invoker и ждёт результат
//   - AsyncTask регистрирует токен корреляции, вызывает Invoker и
//     приостанавливается до Complete с тем же токеном
//   - Parallel выполняет ветки конкурентно на копиях входа, результат —
//     список выходов веток в порядке объявления
//   - Chain выполняет тело как один шаг
//   - Success и Fail завершают run и отправляют уведомление
//
// Ошибка узла записывается по пути ошибки его catch, управление
// переходит к цели catch. Повторный или неизвестный токен в Complete
// логируется как аномалия и игнорируется.
//
// Service связывает Coordinator с PostgreSQL и RabbitMQ.
package coordinator
