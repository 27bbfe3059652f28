// Package executor walks a task tree, driving execution order and failure
// propagation across the three combinators and delegating leaves to the
// agent boundary.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/openclaw/taskweave/internal/agent"
	"github.com/openclaw/taskweave/internal/gate"
	"github.com/openclaw/taskweave/internal/logging"
	"github.com/openclaw/taskweave/internal/memory"
	"github.com/openclaw/taskweave/internal/tasktree"
)

// Status is the outcome of executing one node.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// DiagCancelled is the diagnostic recorded for nodes halted by run
// cancellation.
const DiagCancelled = "cancelled"

// PhaseResult is the outcome record for a single node. Composite nodes fold
// their children's produced facts and diagnostics upward; the root's
// PhaseResult is the whole run's verdict.
type PhaseResult struct {
	NodeID        string
	Status        Status
	ProducedFacts map[string]string
	Diagnostics   []string
	Children      []PhaseResult
}

// Executor walks one tree against one working-memory store. Sequence and
// Fallback run children on the calling goroutine; Parallel fans out and
// joins. The tree is read-only here: all invariants were enforced at build
// time.
type Executor struct {
	tree    *tasktree.Tree
	mem     *memory.WorkingStore
	agents  *agent.Caller
	gates   *gate.Runner
	logger  *logging.Logger
	factTTL time.Duration

	// Callbacks, all optional.
	OnNodeStart    func(nodeID string, kind tasktree.Kind)
	OnNodeComplete func(res PhaseResult)
	OnFactWritten  func(key, nodeID string)
	OnGateVerdict  func(nodeID string, v gate.Verdict)
}

// New creates an executor. factTTL bounds the lifetime of facts written to
// working memory during this run.
func New(tree *tasktree.Tree, mem *memory.WorkingStore, agents *agent.Caller, gates *gate.Runner, factTTL time.Duration) *Executor {
	return &Executor{
		tree:    tree,
		mem:     mem,
		agents:  agents,
		gates:   gates,
		logger:  logging.New().WithComponent("executor"),
		factTTL: factTTL,
	}
}

// SetLogger replaces the executor's logger, typically to tag it with a run ID.
func (e *Executor) SetLogger(l *logging.Logger) {
	e.logger = l.WithComponent("executor")
}

// Execute walks the whole tree and returns the root's PhaseResult. Failures
// are statuses, not errors; by the time execution starts, the only way to
// stop early is cancellation.
func (e *Executor) Execute(ctx context.Context) PhaseResult {
	return e.execute(ctx, 0)
}

// execute runs the node at arena index i.
func (e *Executor) execute(ctx context.Context, i int) PhaseResult {
	n := e.tree.Node(i)

	if ctx.Err() != nil {
		// Never issue new work after cancellation.
		return PhaseResult{NodeID: n.ID, Status: StatusFailed, Diagnostics: []string{DiagCancelled}}
	}

	if e.OnNodeStart != nil {
		e.OnNodeStart(n.ID, n.Kind)
	}
	e.logger.NodeStart(n.ID, string(n.Kind))
	ctx, span := e.startNodeSpan(ctx, n)
	start := time.Now()

	var res PhaseResult
	switch n.Kind {
	case tasktree.KindLeaf:
		res = e.executeLeaf(ctx, n)
	case tasktree.KindSequence:
		res = e.executeSequence(ctx, n)
	case tasktree.KindParallel:
		res = e.executeParallel(ctx, n)
	case tasktree.KindFallback:
		res = e.executeFallback(ctx, n)
	}

	e.endNodeSpan(span, res)
	e.logger.NodeComplete(n.ID, string(n.Kind), time.Since(start), string(res.Status))
	if e.OnNodeComplete != nil {
		e.OnNodeComplete(res)
	}
	return res
}

// executeLeaf hands the goal plus available facts to the agent boundary,
// writes back whatever declared facts the agent produced, then checks the
// node's quality gate. A failed gate fails the leaf even when the agent
// reported success.
func (e *Executor) executeLeaf(ctx context.Context, n *tasktree.Node) PhaseResult {
	res := PhaseResult{NodeID: n.ID, ProducedFacts: map[string]string{}}

	// Missing required facts are passed as absent, not treated as fatal.
	facts := e.mem.Collect(n.RequiredFacts)

	callStart := time.Now()
	agentRes, err := e.agents.Call(ctx, agent.Request{
		NodeID: n.ID,
		Goal:   n.Goal,
		Facts:  facts,
	}, n.Timeout)
	e.logger.AgentResult(n.ID, time.Since(callStart), err)

	if err != nil {
		res.Status = StatusFailed
		res.Diagnostics = append(res.Diagnostics, err.Error())
		return res
	}

	e.writeFacts(n, agentRes.ProducedFacts, &res)

	if !agentRes.Succeeded {
		res.Status = StatusFailed
		if agentRes.Narrative != "" {
			res.Diagnostics = append(res.Diagnostics, agentRes.Narrative)
		}
		return res
	}

	if n.Gate != "" {
		gateCtx, gateSpan := e.startGateSpan(ctx, n.Gate, n.ID)
		gateStart := time.Now()
		verdict := e.gates.Run(gateCtx, n.Gate, e.gateContext(n, res.ProducedFacts), n.Timeout)
		e.endGateSpan(gateSpan, verdict.Passed)
		e.logger.GateResult(n.Gate, n.ID, verdict.Passed, time.Since(gateStart))
		if e.OnGateVerdict != nil {
			e.OnGateVerdict(n.ID, verdict)
		}
		if !verdict.Passed {
			res.Status = StatusFailed
			res.Diagnostics = append(res.Diagnostics, verdict.Messages...)
			return res
		}
	}

	res.Status = StatusSucceeded
	return res
}

// writeFacts stores the agent's produced facts that the node declared.
// Undeclared keys are dropped with a warning; the declaration is the node's
// write permission.
func (e *Executor) writeFacts(n *tasktree.Node, produced map[string]string, res *PhaseResult) {
	declared := make(map[string]bool, len(n.ProducedFacts))
	for _, k := range n.ProducedFacts {
		declared[k] = true
	}
	for k, v := range produced {
		if !declared[k] {
			e.logger.Warn("undeclared fact dropped", map[string]interface{}{
				"key":  k,
				"node": n.ID,
			})
			continue
		}
		e.mem.Put(k, v, n.ID, e.factTTL)
		e.logger.FactWritten(k, n.ID, e.factTTL)
		res.ProducedFacts[k] = v
		if e.OnFactWritten != nil {
			e.OnFactWritten(k, n.ID)
		}
	}
}

// gateContext assembles the phase context handed to a quality gate: the goal
// text plus the facts this leaf just produced.
func (e *Executor) gateContext(n *tasktree.Node, produced map[string]string) map[string]string {
	ctx := make(map[string]string, len(produced)+2)
	ctx["node"] = n.ID
	ctx["goal"] = n.Goal
	for k, v := range produced {
		ctx[k] = v
	}
	return ctx
}

// executeSequence runs children in list order, stopping at the first failure.
// Children after the failure report skipped and are never dispatched. A
// child's produced facts are visible to the next child because child i+1
// does not begin until child i has fully returned, gate check included.
func (e *Executor) executeSequence(ctx context.Context, n *tasktree.Node) PhaseResult {
	res := PhaseResult{NodeID: n.ID, ProducedFacts: map[string]string{}}

	failed := false
	for _, c := range n.Children {
		child := e.tree.Node(c)
		if failed {
			res.Children = append(res.Children, PhaseResult{NodeID: child.ID, Status: StatusSkipped})
			continue
		}

		childRes := e.execute(ctx, c)
		res.Children = append(res.Children, childRes)
		res.Diagnostics = append(res.Diagnostics, childRes.Diagnostics...)
		for k, v := range childRes.ProducedFacts {
			res.ProducedFacts[k] = v
		}
		if childRes.Status == StatusFailed {
			failed = true
		}
	}

	if failed {
		res.Status = StatusFailed
	} else {
		res.Status = StatusSucceeded
	}
	return res
}

// executeParallel dispatches all children concurrently against the shared
// memory store and joins them. Order between siblings is not defined;
// correctness rests on the disjointness invariant enforced at build time.
// Cancellation reaches all live children at once through the shared context.
func (e *Executor) executeParallel(ctx context.Context, n *tasktree.Node) PhaseResult {
	res := PhaseResult{NodeID: n.ID, ProducedFacts: map[string]string{}}

	children := make([]PhaseResult, len(n.Children))
	var wg sync.WaitGroup
	for idx, c := range n.Children {
		wg.Add(1)
		go func(idx, c int) {
			defer wg.Done()
			children[idx] = e.execute(ctx, c)
		}(idx, c)
	}
	wg.Wait()

	res.Status = StatusSucceeded
	for _, childRes := range children {
		res.Children = append(res.Children, childRes)
		for k, v := range childRes.ProducedFacts {
			res.ProducedFacts[k] = v
		}
		if childRes.Status != StatusSucceeded {
			res.Status = StatusFailed
			res.Diagnostics = append(res.Diagnostics, childRes.Diagnostics...)
		}
	}
	return res
}

// executeFallback tries children in order until one succeeds; that child's
// facts and status become the Fallback's own. When every child fails, the
// diagnostics of all attempts accumulate, most recent last.
func (e *Executor) executeFallback(ctx context.Context, n *tasktree.Node) PhaseResult {
	res := PhaseResult{NodeID: n.ID, ProducedFacts: map[string]string{}}

	for _, c := range n.Children {
		childRes := e.execute(ctx, c)
		res.Children = append(res.Children, childRes)

		if childRes.Status == StatusSucceeded {
			res.Status = StatusSucceeded
			res.ProducedFacts = childRes.ProducedFacts
			res.Diagnostics = childRes.Diagnostics
			return res
		}
		res.Diagnostics = append(res.Diagnostics, childRes.Diagnostics...)

		if ctx.Err() != nil {
			// A degraded alternative cannot rescue a cancelled run.
			break
		}
	}

	res.Status = StatusFailed
	return res
}
