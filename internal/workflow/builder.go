package workflow

import (
	"fmt"
)

// SharedFailID — ID общего Fail, создаваемого Build, если Fail не объявлен.
const SharedFailID = "Fail"

// Builder собирает граф выполнения.
//
// Ошибки методов запоминаются: первая ошибка возвращается из Build,
// последующие вызовы игнорируются.
type Builder struct {
	nodes      map[string]*Node
	order      []string
	sharedFail string // назначен через SetSharedFail
	err        error
}

// NewBuilder создаёт пустой Builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[string]*Node)}
}

// Err возвращает первую ошибку построения.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Add добавляет готовый узел и возвращает его ID.
func (b *Builder) Add(n *Node) string {
	if b.err != nil {
		return n.ID
	}
	if n.ID == "" {
		b.fail(NewValidationError("", "id", "node has empty ID", ErrEmptyNodeID))
		return ""
	}
	if _, exists := b.nodes[n.ID]; exists {
		b.fail(NewValidationError(n.ID, "id", "duplicate node ID", ErrDuplicateNodeID))
		return n.ID
	}
	if !n.Kind.IsValid() {
		b.fail(NewValidationError(n.ID, "kind", fmt.Sprintf("unknown kind %q", n.Kind), ErrUnknownNode))
		return n.ID
	}

	for _, to := range n.edges() {
		if _, ok := b.nodes[to]; !ok {
			continue
		}
		if b.reaches(to, n.ID) {
			b.fail(NewValidationError(n.ID, "edges", "edge to "+to+" creates a cycle", ErrCycleDetected))
			return n.ID
		}
	}

	b.nodes[n.ID] = n.clone()
	b.order = append(b.order, n.ID)
	return n.ID
}

func (b *Builder) add(id string, kind Kind, opts []Option) *Node {
	n := &Node{ID: id, Kind: kind}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Task добавляет синхронный узел внешнего вызова.
func (b *Builder) Task(id, resource string, opts ...Option) string {
	n := b.add(id, KindTask, opts)
	n.Resource = resource
	return b.Add(n)
}

// AsyncTask добавляет узел внешнего вызова с токеном корреляции.
func (b *Builder) AsyncTask(id, resource string, opts ...Option) string {
	n := b.add(id, KindAsyncTask, opts)
	n.Resource = resource
	return b.Add(n)
}

// Parallel добавляет узел параллельного выполнения веток.
// Ветки задаются ID начальных узлов и должны быть добавлены ранее.
func (b *Builder) Parallel(id string, branches []string, opts ...Option) string {
	n := b.add(id, KindParallel, opts)
	n.Branches = append([]string(nil), branches...)
	for _, br := range branches {
		b.requireNode(id, "branches", br)
	}
	return b.Add(n)
}

// ChainBlock добавляет узел, выполняющий последовательность узлов
// от body до первого узла без next как единый шаг.
func (b *Builder) ChainBlock(id, body string, opts ...Option) string {
	n := b.add(id, KindChain, opts)
	n.Body = body
	b.requireNode(id, "body", body)
	return b.Add(n)
}

// Succeed добавляет терминальный узел успешного завершения.
func (b *Builder) Succeed(id string, opts ...Option) string {
	return b.Add(b.add(id, KindSuccess, opts))
}

// Fail добавляет терминальный узел ошибки. Первый Fail верхнего уровня
// становится общим Fail графа, если не назначен через SetSharedFail.
func (b *Builder) Fail(id string, opts ...Option) string {
	return b.Add(b.add(id, KindFail, opts))
}

// SetSharedFail назначает общий Fail графа.
func (b *Builder) SetSharedFail(id string) *Builder {
	if b.err != nil {
		return b
	}
	n, ok := b.nodes[id]
	if !ok {
		b.fail(NewValidationError(id, "shared_fail", "unknown node", ErrUnknownNode))
		return b
	}
	if n.Kind != KindFail {
		b.fail(NewValidationError(id, "shared_fail", "node is not a fail terminal", ErrInvalidCatchTarget))
		return b
	}
	b.sharedFail = id
	return b
}

// Chain связывает узлы последовательно через next.
func (b *Builder) Chain(ids ...string) *Builder {
	for i := 1; i < len(ids); i++ {
		b.Link(ids[i-1], ids[i])
	}
	return b
}

// Link задаёт next узла from. Ссылка на предка from отклоняется
// с ErrCycleDetected.
func (b *Builder) Link(from, to string) *Builder {
	if b.err != nil {
		return b
	}
	n, ok := b.requireNode(from, "next", from)
	_, okTo := b.requireNode(from, "next", to)
	if !ok || !okTo {
		return b
	}
	if n.Kind.IsTerminal() {
		b.fail(NewValidationError(from, "next", "terminal node cannot have next", ErrTerminalNext))
		return b
	}
	if n.Next != "" && n.Next != to {
		b.fail(NewValidationError(from, "next", "next already set to "+n.Next, ErrNextAlreadySet))
		return b
	}
	if b.reaches(to, from) {
		b.fail(NewValidationError(from, "next", "linking to "+to+" creates a cycle", ErrCycleDetected))
		return b
	}
	n.Next = to
	return b
}

// AttachCatch задаёт перехват ошибки узла: ошибка записывается по
// errorPath (пусто — $.Error), управление переходит к target.
func (b *Builder) AttachCatch(id, target, errorPath string) *Builder {
	if b.err != nil {
		return b
	}
	n, ok := b.requireNode(id, "catch", id)
	_, okTarget := b.requireNode(id, "catch", target)
	if !ok || !okTarget {
		return b
	}
	if !n.Kind.Catchable() {
		b.fail(NewValidationError(id, "catch", "terminal node cannot have catch", ErrInvalidCatchTarget))
		return b
	}
	if target == id {
		b.fail(NewValidationError(id, "catch", "node cannot catch into itself", ErrInvalidCatchTarget))
		return b
	}
	if errorPath == "" {
		errorPath = DefaultErrorPath
	}
	if err := ValidateReferencePath(errorPath); err != nil {
		b.fail(NewValidationError(id, "catch.error_path", err.Error(), err))
		return b
	}
	if b.reaches(target, id) {
		b.fail(NewValidationError(id, "catch", "catching into "+target+" creates a cycle", ErrCycleDetected))
		return b
	}
	n.Catch = &Catch{Target: target, ErrorPath: errorPath}
	return b
}

// requireNode возвращает узел или запоминает ErrUnknownNode.
// Второе значение сообщает, что узел найден.
func (b *Builder) requireNode(owner, field, id string) (*Node, bool) {
	n, ok := b.nodes[id]
	if !ok {
		b.fail(NewValidationError(owner, field, "references unknown node "+id, ErrUnknownNode))
	}
	return n, ok
}

// reaches проверяет, достижим ли to из from по рёбрам графа.
func (b *Builder) reaches(from, to string) bool {
	if from == to {
		return true
	}
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := b.nodes[id]
		if !ok {
			continue
		}
		for _, next := range n.edges() {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}
