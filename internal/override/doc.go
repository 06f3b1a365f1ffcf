// Package override реализует реестр именованных точек переопределения конфигурации.
//
// Точка переопределения (Entry) связывает стабильное имя параметра
// ("CoreInstanceCount") с путём в дереве конфигурации и значением по умолчанию.
// Registry привязан к дереву, против которого проверяются пути при регистрации:
//
//	reg := override.NewRegistry("default", tree)
//	reg.Register("FleetType", configtree.P("Instances", "Fleet", 0, "Type"), "small")
//	resolved, err := reg.Apply(tree, map[string]any{"FleetType": "large"})
//
// Значение по умолчанию носит справочный характер: Apply не записывает его
// повторно, если имя не передано в наборе переопределений.
package override
