// Package scheduler запускает launch-функции по расписанию.
//
// Расписания читаются из YAML-файла (SCHEDULES_FILE) и живут в памяти
// процесса. Scheduler раз в тик проверяет NextDueAt и создаёт PENDING
// runs, которые затем забирает orchestrator.
//
// Структура:
//   - scheduler.go — основная логика Scheduler (Tick, processSchedule)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//   - file.go      — загрузка и проверка файла расписаний
//
// Использование:
//
//	schedules, err := scheduler.LoadFile(path)
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedules: schedules,
//	    Runs:      runRepo,
//	    Functions: functionRepo,
//	    Publisher: publisher,  // опционально
//	    Logger:    logger,
//	})
//
//	// Вызывается каждый тик (обычно раз в секунду)
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock.
// Метод Tick() вызывается только лидером. Ключ идемпотентности
// "{name}_{due_unix}" не даёт создать дубликат при смене лидера.
package scheduler
