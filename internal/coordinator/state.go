package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/shaiso/Launchpad/internal/workflow"
)

// NodeStatus — статус узла в run.
type NodeStatus string

const (
	NodePending          NodeStatus = "PENDING"
	NodeRunning          NodeStatus = "RUNNING"
	NodeAwaitingCallback NodeStatus = "AWAITING_CALLBACK"
	NodeSucceeded        NodeStatus = "SUCCEEDED"
	NodeFailed           NodeStatus = "FAILED"
)

// IsFinal проверяет, что узел завершён.
func (s NodeStatus) IsFinal() bool {
	return s == NodeSucceeded || s == NodeFailed
}

// NodeState — состояние узла в run.
type NodeState struct {
	NodeID     string
	Kind       workflow.Kind
	Status     NodeStatus
	Branch     int // -1 вне parallel
	Token      string
	Output     any
	Failure    *workflow.NodeExecutionFailure
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunState — состояние выполнения одного run в памяти.
//
// Создаётся в Run и удаляется, когда run достигает терминального узла.
type RunState struct {
	runID     string
	graph     *workflow.Graph
	input     any
	startedAt time.Time
	cancel    context.CancelCauseFunc

	mu          sync.RWMutex
	nodes       map[string]*NodeState
	lastFailure *workflow.NodeExecutionFailure
}

func newRunState(runID string, graph *workflow.Graph, input any) *RunState {
	nodes := make(map[string]*NodeState, graph.Len())
	for _, id := range graph.Order() {
		n, _ := graph.Node(id)
		nodes[id] = &NodeState{NodeID: id, Kind: n.Kind, Status: NodePending, Branch: -1}
	}
	return &RunState{
		runID:     runID,
		graph:     graph,
		input:     input,
		startedAt: time.Now().UTC(),
		nodes:     nodes,
	}
}

// RunID возвращает ID run.
func (s *RunState) RunID() string { return s.runID }

// Graph возвращает граф run.
func (s *RunState) Graph() *workflow.Graph { return s.graph }

// StartedAt возвращает время запуска run.
func (s *RunState) StartedAt() time.Time { return s.startedAt }

// start переводит узел в RUNNING. Повторный запуск — ErrNodeReentered.
func (s *RunState) start(nodeID string, branch int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.nodes[nodeID]
	if ns.Status != NodePending {
		return ErrNodeReentered
	}
	ns.Status = NodeRunning
	ns.Branch = branch
	ns.StartedAt = time.Now().UTC()
	return nil
}

// await переводит узел в AWAITING_CALLBACK.
func (s *RunState) await(nodeID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.nodes[nodeID]
	ns.Status = NodeAwaitingCallback
	ns.Token = token
}

// succeed помечает узел успешно завершённым.
func (s *RunState) succeed(nodeID string, output any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.nodes[nodeID]
	ns.Status = NodeSucceeded
	ns.Output = output
	ns.FinishedAt = time.Now().UTC()
}

// fail помечает узел упавшим.
func (s *RunState) fail(nodeID string, f *workflow.NodeExecutionFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.nodes[nodeID]
	ns.Status = NodeFailed
	ns.Failure = f
	ns.FinishedAt = time.Now().UTC()
}

// caught запоминает ошибку, переданную в catch.
func (s *RunState) caught(f *workflow.NodeExecutionFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFailure = f
}

// LastFailure возвращает последнюю перехваченную ошибку.
func (s *RunState) LastFailure() *workflow.NodeExecutionFailure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFailure
}

// Node возвращает копию состояния узла.
func (s *RunState) Node(nodeID string) (NodeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.nodes[nodeID]
	if !ok {
		return NodeState{}, false
	}
	return *ns, true
}

// Status возвращает статус узла.
func (s *RunState) Status(nodeID string) NodeStatus {
	ns, ok := s.Node(nodeID)
	if !ok {
		return ""
	}
	return ns.Status
}

// Nodes возвращает состояния узлов в топологическом порядке.
func (s *RunState) Nodes() []NodeState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]NodeState, 0, len(s.nodes))
	for _, id := range s.graph.Order() {
		out = append(out, *s.nodes[id])
	}
	return out
}

// RunStats — статистика выполнения run.
type RunStats struct {
	TotalNodes     int
	PendingNodes   int
	RunningNodes   int
	AwaitingNodes  int
	SucceededNodes int
	FailedNodes    int
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RunStats{TotalNodes: len(s.nodes)}
	for _, ns := range s.nodes {
		switch ns.Status {
		case NodePending:
			stats.PendingNodes++
		case NodeRunning:
			stats.RunningNodes++
		case NodeAwaitingCallback:
			stats.AwaitingNodes++
		case NodeSucceeded:
			stats.SucceededNodes++
		case NodeFailed:
			stats.FailedNodes++
		}
	}
	return stats
}
