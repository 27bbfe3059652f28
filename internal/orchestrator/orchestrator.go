// Package orchestrator drives a whole run: it consults episodic memory for
// similar past runs, walks the task tree through the executor, and records
// exactly one episode with the outcome.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/taskweave/internal/agent"
	"github.com/openclaw/taskweave/internal/executor"
	"github.com/openclaw/taskweave/internal/gate"
	"github.com/openclaw/taskweave/internal/logging"
	"github.com/openclaw/taskweave/internal/memory"
	"github.com/openclaw/taskweave/internal/tasktree"
)

// RunState is the lifecycle of one run.
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateSucceeded RunState = "succeeded"
	StateFailed    RunState = "failed"
)

// RunEvent is one entry in a run's trail. Events are appended as the
// executor reports progress; parallel children may interleave.
type RunEvent struct {
	Time   time.Time
	Kind   string // node_start, node_complete, fact_written, gate_verdict
	NodeID string
	Detail string
}

// RunContext carries everything one run owns: its identity, its private
// working-memory store, and the event trail. Nothing here is shared between
// runs.
type RunContext struct {
	RunID     string
	Goal      string
	Tags      []string
	StartedAt time.Time
	Working   *memory.WorkingStore

	// Similar episodes found before execution began, best match first.
	Prior []memory.Episode

	mu     sync.Mutex
	state  RunState
	events []RunEvent
}

func newRunContext(goal string, tags []string) *RunContext {
	return &RunContext{
		RunID:     uuid.New().String(),
		Goal:      goal,
		Tags:      tags,
		StartedAt: time.Now(),
		Working:   memory.NewWorkingStore(),
		state:     StatePending,
	}
}

// State reports the run's current lifecycle state.
func (rc *RunContext) State() RunState {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

func (rc *RunContext) setState(s RunState) {
	rc.mu.Lock()
	rc.state = s
	rc.mu.Unlock()
}

// Events returns a copy of the trail recorded so far.
func (rc *RunContext) Events() []RunEvent {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]RunEvent(nil), rc.events...)
}

func (rc *RunContext) record(kind, nodeID, detail string) {
	rc.mu.Lock()
	rc.events = append(rc.events, RunEvent{Time: time.Now(), Kind: kind, NodeID: nodeID, Detail: detail})
	rc.mu.Unlock()
}

// WorkflowResult is what a completed run hands back to the caller.
type WorkflowResult struct {
	RunID     string
	State     RunState
	Root      executor.PhaseResult
	EpisodeID string
	Duration  time.Duration
}

// Options tunes one orchestrator. Zero values fall back to the defaults
// below.
type Options struct {
	AgentTimeout time.Duration
	GateTimeout  time.Duration
	FactTTL      time.Duration
	SimilarLimit int
}

const (
	defaultAgentTimeout = 2 * time.Minute
	defaultGateTimeout  = time.Minute
	defaultFactTTL      = 30 * time.Minute
	defaultSimilarLimit = 5
)

func (o Options) withDefaults() Options {
	if o.AgentTimeout <= 0 {
		o.AgentTimeout = defaultAgentTimeout
	}
	if o.GateTimeout <= 0 {
		o.GateTimeout = defaultGateTimeout
	}
	if o.FactTTL <= 0 {
		o.FactTTL = defaultFactTTL
	}
	if o.SimilarLimit <= 0 {
		o.SimilarLimit = defaultSimilarLimit
	}
	return o
}

// Orchestrator wires the agent boundary, the gate runner and the episodic
// store together and runs trees against them. It is safe to run multiple
// trees from one orchestrator; each run gets its own RunContext.
type Orchestrator struct {
	invoker  agent.Invoker
	checker  gate.Checker
	episodes memory.EpisodicStore
	logger   *logging.Logger
	opts     Options
}

// New creates an orchestrator. episodes may not be nil; runs that cannot be
// remembered are the one failure mode this core refuses to hide.
func New(invoker agent.Invoker, checker gate.Checker, episodes memory.EpisodicStore, opts Options) *Orchestrator {
	return &Orchestrator{
		invoker:  invoker,
		checker:  checker,
		episodes: episodes,
		logger:   logging.New().WithComponent("orchestrator"),
		opts:     opts.withDefaults(),
	}
}

// SetLogger replaces the orchestrator's logger.
func (o *Orchestrator) SetLogger(l *logging.Logger) {
	o.logger = l.WithComponent("orchestrator")
}

// Run executes one tree for one goal. Exactly one episode is recorded per
// call, whatever the outcome; a failed write to the episodic store is
// returned alongside the result, never swallowed. Cancellation terminates
// the run as a normal failure.
func (o *Orchestrator) Run(ctx context.Context, tree *tasktree.Tree, goal string, tags []string) (WorkflowResult, *RunContext, error) {
	rc := newRunContext(goal, tags)
	logger := o.logger.WithRunID(rc.RunID)
	logger.RunStart(goal)

	ctx, span := o.startRunSpan(ctx, rc)

	prior, err := o.episodes.FindSimilar(ctx, goal, tags, o.opts.SimilarLimit)
	if err != nil {
		// A broken recall does not stop the run, only the run's hindsight.
		logger.Warn("similar-episode lookup failed", map[string]interface{}{"error": err.Error()})
	}
	rc.Prior = prior

	rc.setState(StateRunning)
	exec := executor.New(
		tree,
		rc.Working,
		agent.NewCaller(o.invoker, o.opts.AgentTimeout),
		gate.NewRunner(o.checker, o.opts.GateTimeout),
		o.opts.FactTTL,
	)
	exec.SetLogger(logger)
	exec.OnNodeStart = func(nodeID string, kind tasktree.Kind) {
		rc.record("node_start", nodeID, string(kind))
	}
	exec.OnNodeComplete = func(res executor.PhaseResult) {
		rc.record("node_complete", res.NodeID, string(res.Status))
	}
	exec.OnFactWritten = func(key, nodeID string) {
		rc.record("fact_written", nodeID, key)
	}
	exec.OnGateVerdict = func(nodeID string, v gate.Verdict) {
		rc.record("gate_verdict", nodeID, fmt.Sprintf("%s passed=%v", v.GateName, v.Passed))
	}

	root := exec.Execute(ctx)
	duration := time.Since(rc.StartedAt)

	state := StateSucceeded
	outcome := memory.OutcomeSucceeded
	if root.Status != executor.StatusSucceeded || ctx.Err() != nil {
		state = StateFailed
		outcome = memory.OutcomeFailed
	}
	rc.setState(state)
	o.endRunSpan(span, state, root)
	logger.RunComplete(goal, duration, string(state))

	ep := memory.NewEpisode(goal, tags, patternsApplied(tree), outcome, duration, harvestLearnings(root))
	// Record with a fresh context: a cancelled run still deserves its episode.
	recordCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	recordErr := o.episodes.Record(recordCtx, ep)
	if recordErr != nil {
		recordErr = fmt.Errorf("record episode %s: %w", ep.EpisodeID, recordErr)
	} else {
		logger.EpisodeRecorded(ep.EpisodeID, string(outcome))
	}

	return WorkflowResult{
		RunID:     rc.RunID,
		State:     state,
		Root:      root,
		EpisodeID: ep.EpisodeID,
		Duration:  duration,
	}, rc, recordErr
}

// patternsApplied lists the distinct node kinds the tree uses, composites
// first. The list feeds the episode so later runs can match on shape, not
// just goal text.
func patternsApplied(tree *tasktree.Tree) []string {
	seen := map[tasktree.Kind]bool{}
	tree.Walk(func(_ int, n *tasktree.Node) {
		seen[n.Kind] = true
	})
	kinds := make([]string, 0, len(seen))
	for k := range seen {
		if k != tasktree.KindLeaf {
			kinds = append(kinds, string(k))
		}
	}
	sort.Strings(kinds)
	return kinds
}

// harvestLearnings condenses the run's diagnostics into the episode's
// learnings field. A clean run has nothing to teach about failure and gets
// an empty string.
func harvestLearnings(root executor.PhaseResult) string {
	var lines []string
	var walk func(r executor.PhaseResult)
	walk = func(r executor.PhaseResult) {
		if r.Status == executor.StatusFailed && len(r.Children) == 0 {
			for _, d := range r.Diagnostics {
				lines = append(lines, fmt.Sprintf("%s: %s", r.NodeID, d))
			}
		}
		for _, c := range r.Children {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(lines, "\n")
}
