// Package workflow описывает граф выполнения запуска кластера.
//
// Граф состоит из узлов (Node) шести видов: Task, AsyncTask, Parallel,
// Chain, Success и Fail. Builder собирает узлы, связывает их через next,
// навешивает перехват ошибок и проверяет граф:
//
//	b := workflow.NewBuilder()
//	b.Task("Override", "local:override-cluster-configs", workflow.WithResultPath("$.ClusterConfig"))
//	b.AsyncTask("Start", "queue:start-cluster", workflow.WithResultPath("$.Result"))
//	b.Succeed("Done")
//	b.Fail("Failed")
//	b.Chain("Override", "Start", "Done")
//	graph, err := b.Build("Override")
//
// Каждый узел верхнего уровня вида Task, AsyncTask, Parallel или Chain без
// явного catch получает неявный перехват на общий Fail с путём ошибки $.Error.
//
// Пути данных (InputPath, ResultPath, OutputPath, селекторы параметров с
// суффиксом ".$") — выражения JSONPath, их разбирает и вычисляет ojg/jp.
package workflow
