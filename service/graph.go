package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"BriefToPack-server/models"
)

// NodeStatus is the lifecycle of one node within a run.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeRunning   NodeStatus = "running"
	NodeSucceeded NodeStatus = "succeeded"
	// degraded: the node completed on fallback or derived content
	NodeDegraded NodeStatus = "degraded"
	// failed: programming error or fatal-path generation error; non-fatal
	// failures leave prior state untouched and the run continues
	NodeFailed NodeStatus = "failed"
)

var (
	ErrNodeExists = errors.New("pipeline: node already registered")
	ErrUnknownDep = errors.New("pipeline: unknown dependency")
)

// FatalNodeError aborts a run. Only nodes registered with Fatal() produce it;
// the partial state accumulated before the failure is preserved.
type FatalNodeError struct {
	Node string
	Err  error
}

func (e *FatalNodeError) Error() string {
	return fmt.Sprintf("pipeline: fatal node %s: %v", e.Node, e.Err)
}

func (e *FatalNodeError) Unwrap() error { return e.Err }

// PanicError wraps a panic recovered from inside a node.
type PanicError struct {
	Node  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("pipeline: node %s panicked: %v", e.Node, e.Value)
}

// NodeFunc reads the shared state and returns a partial update. Nodes never
// write the state directly; the engine merges updates one at a time.
type NodeFunc func(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error)

type node struct {
	id    string
	fn    NodeFunc
	deps  []string
	fatal bool
	gate  bool
}

type NodeOption func(*node)

// DependsOn declares predecessors. The node runs only after every predecessor
// reached a terminal status.
func DependsOn(ids ...string) NodeOption {
	return func(n *node) { n.deps = append(n.deps, ids...) }
}

// Fatal marks a node whose failure aborts the whole run.
func Fatal() NodeOption {
	return func(n *node) { n.fatal = true }
}

// Gate marks an approval gate. A gate's update may set Halt to stop traversal.
func Gate() NodeOption {
	return func(n *node) { n.gate = true }
}

// Graph is a DAG of nodes. Dependencies must already be registered when a node
// is added, so cycles cannot form by construction.
type Graph struct {
	nodes map[string]*node
	order []string
}

func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

func (g *Graph) AddNode(id string, fn NodeFunc, opts ...NodeOption) error {
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("%w: %s", ErrNodeExists, id)
	}
	n := &node{id: id, fn: fn}
	for _, opt := range opts {
		opt(n)
	}
	for _, d := range n.deps {
		if _, ok := g.nodes[d]; !ok {
			return fmt.Errorf("%w: %s depends on %s", ErrUnknownDep, id, d)
		}
	}
	g.nodes[id] = n
	g.order = append(g.order, id)
	return nil
}

// MustAddNode panics on registration errors; graph wiring is static.
func (g *Graph) MustAddNode(id string, fn NodeFunc, opts ...NodeOption) {
	if err := g.AddNode(id, fn, opts...); err != nil {
		panic(err)
	}
}

func (g *Graph) NodeCount() int { return len(g.order) }

// Hooks observe node lifecycle transitions. Used for job progress reporting.
type Hooks struct {
	OnNodeStart  func(id string)
	OnNodeFinish func(id string, status NodeStatus)
}

type EngineOption func(*Engine)

func WithHooks(h Hooks) EngineOption {
	return func(e *Engine) { e.hooks = h }
}

// WithInterrupt installs a cooperative stop check consulted between dispatch
// waves. In-flight nodes always finish and merge.
func WithInterrupt(fn func() bool) EngineOption {
	return func(e *Engine) { e.interrupt = fn }
}

func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// Engine executes a Graph against one ProjectState. All ready nodes run
// concurrently; their updates merge serially in the engine goroutine, which is
// the single authorized mutation point of the state.
type Engine struct {
	graph     *Graph
	hooks     Hooks
	interrupt func() bool
	logger    *slog.Logger
}

func NewEngine(g *Graph, opts ...EngineOption) *Engine {
	e := &Engine{graph: g, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	return e
}

// RunResult reports per-node outcomes of one traversal.
type RunResult struct {
	Statuses map[string]NodeStatus
	// Halted is set when a gate rejected; HaltedAt names the gate.
	Halted   bool
	HaltedAt string
	// Interrupted is set when the interrupt check or context stopped dispatch.
	Interrupted bool
}

type nodeResult struct {
	id     string
	update *models.StateUpdate
	err    error
}

// Run traverses the graph. It returns a non-nil error only for fatal node
// failures; gate rejection and interruption are reported on the RunResult with
// the partial state left intact.
func (e *Engine) Run(ctx context.Context, st *models.ProjectState) (*RunResult, error) {
	res := &RunResult{Statuses: make(map[string]NodeStatus, len(e.graph.nodes))}
	indegree := make(map[string]int, len(e.graph.nodes))
	dependents := make(map[string][]string)
	for _, id := range e.graph.order {
		n := e.graph.nodes[id]
		indegree[id] = len(n.deps)
		for _, d := range n.deps {
			dependents[d] = append(dependents[d], id)
		}
		res.Statuses[id] = NodePending
	}

	var ready []string
	for _, id := range e.graph.order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	results := make(chan nodeResult)
	running := 0
	var fatalErr error

	dispatch := func(id string) {
		n := e.graph.nodes[id]
		res.Statuses[id] = NodeRunning
		running++
		if e.hooks.OnNodeStart != nil {
			e.hooks.OnNodeStart(id)
		}
		e.logger.Info("node started", "node", id)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					results <- nodeResult{id: id, err: &PanicError{Node: id, Value: r, Stack: debug.Stack()}}
				}
			}()
			update, err := n.fn(ctx, st)
			results <- nodeResult{id: id, update: update, err: err}
		}()
	}

	dispatchReady := func() {
		if res.Halted || fatalErr != nil {
			return
		}
		if ctx.Err() != nil || (e.interrupt != nil && e.interrupt()) {
			if len(ready) > 0 || running > 0 {
				res.Interrupted = true
			}
			return
		}
		for _, id := range ready {
			dispatch(id)
		}
		ready = ready[:0]
	}

	dispatchReady()
	for running > 0 {
		r := <-results
		running--
		n := e.graph.nodes[r.id]

		var status NodeStatus
		if r.err != nil {
			status = NodeFailed
			st.LogStatus(fmt.Sprintf("node %s failed: %s", r.id, snippet(r.err.Error(), 200)))
			e.logger.Error("node failed", "node", r.id, "error", r.err)
			if n.fatal {
				fatalErr = &FatalNodeError{Node: r.id, Err: r.err}
			}
		} else {
			if r.update != nil {
				st.Apply(r.update)
			}
			status = NodeSucceeded
			if r.update != nil && r.update.Degraded {
				status = NodeDegraded
			}
			if r.update != nil && r.update.Halt {
				if n.gate {
					res.Halted = true
					res.HaltedAt = r.id
					e.logger.Warn("run halted at gate", "gate", r.id)
				} else {
					e.logger.Warn("halt ignored from non-gate node", "node", r.id)
				}
			}
		}
		res.Statuses[r.id] = status
		if e.hooks.OnNodeFinish != nil {
			e.hooks.OnNodeFinish(r.id, status)
		}
		e.logger.Info("node finished", "node", r.id, "status", string(status))

		for _, dep := range dependents[r.id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		dispatchReady()
	}

	if fatalErr != nil {
		return res, fatalErr
	}
	return res, nil
}
