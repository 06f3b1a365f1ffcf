package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Graph — проверенный граф выполнения. Не изменяется после Build.
type Graph struct {
	entry      string
	sharedFail string
	nodes      map[string]*Node
	order      []string
	blocks     map[string]string
}

// Entry возвращает ID начального узла.
func (g *Graph) Entry() string { return g.entry }

// SharedFail возвращает ID общего Fail.
func (g *Graph) SharedFail() string { return g.sharedFail }

// Node возвращает узел по ID. Узел нельзя изменять.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len возвращает количество узлов.
func (g *Graph) Len() int { return len(g.nodes) }

// Order возвращает узлы в топологическом порядке.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// TopLevel сообщает, что узел принадлежит верхнему уровню графа
// (не ветке Parallel и не телу Chain).
func (g *Graph) TopLevel(id string) bool {
	return g.blocks[id] == ""
}

// Definition — сериализуемая форма графа.
type Definition struct {
	StartAt    string  `json:"start_at"`
	SharedFail string  `json:"shared_fail,omitempty"`
	Nodes      []*Node `json:"nodes"`
}

// Definition возвращает сериализуемую форму графа (узлы в топологическом порядке).
func (g *Graph) Definition() *Definition {
	def := &Definition{StartAt: g.entry, SharedFail: g.sharedFail}
	for _, id := range g.order {
		def.Nodes = append(def.Nodes, g.nodes[id].clone())
	}
	return def
}

// MarshalJSON сериализует граф в форму Definition.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Definition())
}

// Load строит граф из сериализованной формы.
func Load(def *Definition) (*Graph, error) {
	b := NewBuilder()
	for _, n := range def.Nodes {
		b.Add(n)
	}
	if def.SharedFail != "" {
		b.SetSharedFail(def.SharedFail)
	}
	return b.Build(def.StartAt)
}

// Build проверяет граф и возвращает его неизменяемую копию.
//
// Проверки: существование всех ссылок, принадлежность каждого узла
// одному блоку (верхний уровень, ветка, тело chain), достижимость всех
// узлов из entry, наличие next у нетерминальных узлов верхнего уровня,
// отсутствие циклов, корректность путей данных. Узлы верхнего уровня
// без catch получают перехват на общий Fail.
func (b *Builder) Build(entry string) (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if _, ok := b.nodes[entry]; !ok {
		return nil, NewValidationError(entry, "entry", "unknown entry node", ErrUnknownNode)
	}

	nodes := make(map[string]*Node, len(b.nodes)+1)
	order := append([]string(nil), b.order...)
	for id, n := range b.nodes {
		nodes[id] = n.clone()
	}

	for _, id := range order {
		for _, to := range nodes[id].edges() {
			if _, ok := nodes[to]; !ok {
				return nil, NewValidationError(id, "edges", "references unknown node "+to, ErrUnknownNode)
			}
		}
	}

	blocks, err := assignBlocks(nodes, entry)
	if err != nil {
		return nil, err
	}

	sharedFail, err := b.implicitCatch(nodes, &order, blocks)
	if err != nil {
		return nil, err
	}

	for _, id := range order {
		if _, ok := blocks[id]; !ok {
			return nil, NewValidationError(id, "", "node is not reachable from "+entry, ErrDanglingNode)
		}
	}

	for _, id := range order {
		if err := validateNode(nodes[id], blocks); err != nil {
			return nil, err
		}
	}

	sorted, err := topologicalSort(nodes, order)
	if err != nil {
		return nil, err
	}

	return &Graph{
		entry:      entry,
		sharedFail: sharedFail,
		nodes:      nodes,
		order:      sorted,
		blocks:     blocks,
	}, nil
}

// implicitCatch навешивает перехват на общий Fail для узлов верхнего
// уровня без catch. Общий Fail — назначенный через SetSharedFail, иначе
// первый Fail верхнего уровня, иначе создаётся узел SharedFailID.
func (b *Builder) implicitCatch(nodes map[string]*Node, order *[]string, blocks map[string]string) (string, error) {
	var pending []string
	for _, id := range *order {
		n := nodes[id]
		if blk, ok := blocks[id]; ok && blk == "" && n.Kind.Catchable() && n.Catch == nil {
			pending = append(pending, id)
		}
	}

	shared := b.sharedFail
	if shared == "" {
		for _, id := range *order {
			if blk, ok := blocks[id]; nodes[id].Kind == KindFail && (!ok || blk == "") {
				shared = id
				break
			}
		}
	}
	if shared == "" {
		if len(pending) == 0 {
			return "", nil
		}
		if _, exists := nodes[SharedFailID]; exists {
			return "", NewValidationError(SharedFailID, "id", "shared fail ID is taken by another node", ErrDuplicateNodeID)
		}
		shared = SharedFailID
		nodes[shared] = &Node{ID: shared, Kind: KindFail}
		*order = append(*order, shared)
	}

	if blk, ok := blocks[shared]; ok && blk != "" {
		return "", NewValidationError(shared, "", "shared fail must be a top-level node", ErrCrossBlock)
	}
	if len(pending) > 0 {
		blocks[shared] = ""
	}
	for _, id := range pending {
		nodes[id].Catch = &Catch{Target: shared, ErrorPath: DefaultErrorPath}
	}
	return shared, nil
}

// assignBlocks обходит граф от entry и относит каждый узел к блоку:
// "" — верхний уровень, "<parallel>[i]" — ветка, "<chain>/body" — тело.
// Узел, достижимый из двух блоков, — ошибка ErrCrossBlock.
func assignBlocks(nodes map[string]*Node, entry string) (map[string]string, error) {
	blocks := make(map[string]string, len(nodes))

	var walk func(start, block string) error
	walk = func(start, block string) error {
		stack := []string{start}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if blk, seen := blocks[id]; seen {
				if blk != block {
					return NewValidationError(id, "", fmt.Sprintf("node belongs to blocks %q and %q", blk, block), ErrCrossBlock)
				}
				continue
			}
			blocks[id] = block

			n := nodes[id]
			if n.Catch != nil {
				stack = append(stack, n.Catch.Target)
			}
			if n.Next != "" {
				stack = append(stack, n.Next)
			}
			for i, br := range n.Branches {
				if err := walk(br, id+"["+strconv.Itoa(i)+"]"); err != nil {
					return err
				}
			}
			if n.Body != "" {
				if err := walk(n.Body, id+"/body"); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(entry, ""); err != nil {
		return nil, err
	}
	return blocks, nil
}

// validateNode проверяет поля узла.
func validateNode(n *Node, blocks map[string]string) error {
	switch n.Kind {
	case KindTask, KindAsyncTask:
		if n.Resource == "" {
			return NewValidationError(n.ID, "resource", "task node has no resource", ErrMissingResource)
		}
	case KindParallel:
		if len(n.Branches) == 0 {
			return NewValidationError(n.ID, "branches", "parallel node has no branches", ErrEmptyBranches)
		}
	case KindChain:
		if n.Body == "" {
			return NewValidationError(n.ID, "body", "chain node has no body", ErrEmptyBody)
		}
	case KindSuccess, KindFail:
		if n.Next != "" {
			return NewValidationError(n.ID, "next", "terminal node cannot have next", ErrTerminalNext)
		}
		if n.Catch != nil {
			return NewValidationError(n.ID, "catch", "terminal node cannot have catch", ErrInvalidCatchTarget)
		}
	}

	if blocks[n.ID] == "" && !n.Kind.IsTerminal() && n.Next == "" {
		return NewValidationError(n.ID, "next", "top-level node does not lead to a terminal", ErrDanglingNode)
	}

	if n.Catch != nil {
		if n.Catch.Target == n.ID {
			return NewValidationError(n.ID, "catch", "node cannot catch into itself", ErrInvalidCatchTarget)
		}
		if blocks[n.Catch.Target] != blocks[n.ID] {
			return NewValidationError(n.ID, "catch", "catch target "+n.Catch.Target+" is outside the node's block", ErrInvalidCatchTarget)
		}
		if err := ValidateReferencePath(n.ErrorPath()); err != nil {
			return NewValidationError(n.ID, "catch.error_path", err.Error(), err)
		}
	}

	for field, path := range map[string]string{
		"input_path":   n.InputPath,
		"output_path":  n.OutputPath,
		"message_path": n.MessagePath,
	} {
		if _, err := ParsePath(path); err != nil {
			return NewValidationError(n.ID, field, err.Error(), err)
		}
	}
	if n.ResultPath != "" {
		if err := ValidateReferencePath(n.ResultPath); err != nil {
			return NewValidationError(n.ID, "result_path", err.Error(), err)
		}
	}
	if err := validateParameters(n.Parameters); err != nil {
		return NewValidationError(n.ID, "parameters", err.Error(), err)
	}
	if n.TimeoutSec < 0 {
		return NewValidationError(n.ID, "timeout_sec", "timeout must not be negative", ErrInvalidTimeout)
	}
	return nil
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Порядок среди независимых узлов — порядок добавления.
func topologicalSort(nodes map[string]*Node, order []string) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	for _, id := range order {
		for _, to := range nodes[id].edges() {
			inDegree[to]++
		}
	}

	queue := make([]string, 0, len(order))
	for _, id := range order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		for _, to := range nodes[id].edges() {
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if len(sorted) != len(order) {
		return nil, ErrCycleDetected
	}
	return sorted, nil
}
