// Package clusterconfig собирает конфигурации запуска кластера.
//
// Builder строит базовое дерево (имя, релиз, приложения, bootstrap-действия,
// классификации конфигурации) и регистрирует точки переопределения
// ClusterName, ReleaseLabel и StepConcurrencyLevel. Специализации
// (InstanceGroups, AutoScaling, InstanceFleets, ManagedScaling) наслаиваются
// через Specialize и возвращают новый Builder, не изменяя исходный:
//
//	base, err := clusterconfig.New(ctx, clusterconfig.Inputs{Name: "etl"}, resolver)
//	groups, err := base.Specialize(ctx, clusterconfig.InstanceGroups(clusterconfig.InstanceGroupsOptions{
//		Subnet: `{{ param "/launchpad/network/subnet" }}`,
//	}))
//	resolved, err := groups.Resolve(map[string]any{"CoreInstanceCount": 4})
//
// Строковые значения вида {{ param "name" }} разрешаются через param.Resolver
// при сборке; отсутствующий параметр прерывает сборку.
package clusterconfig
