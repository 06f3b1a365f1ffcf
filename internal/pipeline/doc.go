// Package pipeline строит графы workflow для launch-функций.
//
// LaunchCluster — запуск кластера по хранимой конфигурации:
//
//	Override Cluster Configs → Fail If Cluster Running → Start Cluster
//	      │                         │                        │
//	      └─────────────── catch ───┴────────────────────────┴──→ Launch Cluster Failure
//	                                                         └──→ Launch Cluster Succeeded
//
// Phases — многофазный конвейер: каждая фаза выполняет шаги параллельно,
// результат фазы записывается в $.Result.<Phase>.
//
// Локальные обработчики шагов (override-cluster-configs,
// fail-if-cluster-running, echo) регистрируются через Register.
package pipeline
