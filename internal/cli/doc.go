// Package cli реализует инструмент командной строки Launchpad.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Launchpad API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления конфигурациями кластеров,
// launch-функциями, runs и для завершения асинхронных шагов.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Launchpad API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns(cli.ListRunsOpts{Status: "RUNNING"})
//
// ## Manifests
//
// Конфигурации и launch-функции описываются в YAML (несколько документов
// через ---) и применяются командами apply -f.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: launchpad run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - config: list, show, apply, resolve, delete
//   - launch: list, show, apply, delete
//   - run: list, start, show, cancel, nodes
//   - token: success, failure
//
// Каждая группа создаётся через фабричную функцию (NewConfigCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
