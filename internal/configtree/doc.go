// Package configtree реализует упорядоченное дерево конфигурации запуска кластера.
//
// Tree — вложенное отображение строковых ключей на значения трёх видов:
//   - скаляры (string, bool, int64, float64, nil)
//   - последовательности ([]any)
//   - вложенные деревья (*Tree)
//
// Адресация по пути (Path) — последовательность ключей и индексов:
//
//	p := configtree.MustParsePath("Instances.InstanceGroups.0.InstanceType")
//	v, err := tree.Read(p)
//
// Порядок ключей сохраняется при записи, слиянии и сериализации в JSON/YAML.
package configtree
