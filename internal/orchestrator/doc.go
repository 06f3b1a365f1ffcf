// Package orchestrator управляет жизненным циклом runs.
//
// Orchestrator связывает хранилище (runs, launch-функции, конфигурации),
// очереди RabbitMQ и Coordinator:
//
//	runs.pending ──► processRun: PENDING → RUNNING, pipeline.Build
//	                    │
//	                    ▼
//	               Coordinator.Run ──► queue:* ──► steps.invoke ──► worker
//	                    ▲                                            │
//	steps.completed ────┘ Complete(token) ◄──────────────────────────┘
//	runs.cancel ──► Coordinator.Cancel / CancelPending
//
// Итог выполнения сохраняется в runs, история узлов — через Recorder
// в node_executions.
//
// Завершение шага, чей токен ждёт другой экземпляр, переотправляется в
// steps.completed (поле Hops ограничивает число переотправок).
package orchestrator
