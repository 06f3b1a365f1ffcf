package workflow

import "time"

// Kind — вид узла графа.
type Kind string

const (
	KindTask      Kind = "task"
	KindAsyncTask Kind = "async_task"
	KindParallel  Kind = "parallel"
	KindChain     Kind = "chain"
	KindSuccess   Kind = "success"
	KindFail      Kind = "fail"
)

// IsValid проверяет, что вид узла известен.
func (k Kind) IsValid() bool {
	switch k {
	case KindTask, KindAsyncTask, KindParallel, KindChain, KindSuccess, KindFail:
		return true
	}
	return false
}

// IsTerminal возвращает true для Success и Fail.
func (k Kind) IsTerminal() bool {
	return k == KindSuccess || k == KindFail
}

// Catchable возвращает true для видов, которые могут завершиться ошибкой.
func (k Kind) Catchable() bool {
	switch k {
	case KindTask, KindAsyncTask, KindParallel, KindChain:
		return true
	}
	return false
}

// DefaultErrorPath — путь, по которому записывается ошибка при перехвате.
const DefaultErrorPath = "$.Error"

// Catch — перехват ошибки узла.
type Catch struct {
	Target    string `json:"target"`
	ErrorPath string `json:"error_path,omitempty"`
}

// Node — узел графа выполнения.
type Node struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	// Resource — идентификатор внешнего вызова (Task, AsyncTask),
	// например "local:override-cluster-configs" или "https://...".
	Resource string `json:"resource,omitempty"`

	// Parameters — шаблон полезной нагрузки; ключи с суффиксом ".$"
	// содержат путь JSONPath.
	Parameters map[string]any `json:"parameters,omitempty"`

	InputPath  string `json:"input_path,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	ResultPath string `json:"result_path,omitempty"`

	Catch *Catch `json:"catch,omitempty"`

	// Branches — начальные узлы веток (Parallel).
	Branches []string `json:"branches,omitempty"`

	// Body — начальный узел тела (Chain).
	Body string `json:"body,omitempty"`

	Next string `json:"next,omitempty"`

	TimeoutSec int `json:"timeout_sec,omitempty"`

	// Subject и MessagePath — уведомление терминального узла.
	Subject     string `json:"subject,omitempty"`
	MessagePath string `json:"message_path,omitempty"`

	Comment string `json:"comment,omitempty"`
}

// Timeout возвращает таймаут узла (0 — без таймаута).
func (n *Node) Timeout() time.Duration {
	return time.Duration(n.TimeoutSec) * time.Second
}

// ErrorPath возвращает путь ошибки перехвата или DefaultErrorPath.
func (n *Node) ErrorPath() string {
	if n.Catch == nil || n.Catch.ErrorPath == "" {
		return DefaultErrorPath
	}
	return n.Catch.ErrorPath
}

// edges возвращает все исходящие рёбра узла.
func (n *Node) edges() []string {
	out := make([]string, 0, len(n.Branches)+3)
	if n.Next != "" {
		out = append(out, n.Next)
	}
	if n.Catch != nil && n.Catch.Target != "" {
		out = append(out, n.Catch.Target)
	}
	out = append(out, n.Branches...)
	if n.Body != "" {
		out = append(out, n.Body)
	}
	return out
}

func (n *Node) clone() *Node {
	c := *n
	if n.Parameters != nil {
		c.Parameters = Copy(n.Parameters).(map[string]any)
	}
	if n.Catch != nil {
		catch := *n.Catch
		c.Catch = &catch
	}
	c.Branches = append([]string(nil), n.Branches...)
	return &c
}

// Option настраивает узел при добавлении в Builder.
type Option func(*Node)

// WithParameters задаёт шаблон полезной нагрузки.
func WithParameters(params map[string]any) Option {
	return func(n *Node) { n.Parameters = params }
}

// WithInputPath задаёт путь выбора входа.
func WithInputPath(path string) Option {
	return func(n *Node) { n.InputPath = path }
}

// WithOutputPath задаёт путь выбора выхода.
func WithOutputPath(path string) Option {
	return func(n *Node) { n.OutputPath = path }
}

// WithResultPath задаёт путь записи результата.
func WithResultPath(path string) Option {
	return func(n *Node) { n.ResultPath = path }
}

// WithTimeout задаёт таймаут узла.
func WithTimeout(d time.Duration) Option {
	return func(n *Node) { n.TimeoutSec = int(d / time.Second) }
}

// WithNotification задаёт тему и путь сообщения терминального узла.
func WithNotification(subject, messagePath string) Option {
	return func(n *Node) {
		n.Subject = subject
		n.MessagePath = messagePath
	}
}

// WithComment задаёт комментарий узла.
func WithComment(comment string) Option {
	return func(n *Node) { n.Comment = comment }
}
