// Package main is the entry point for the taskweave CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/openclaw/taskweave/internal/agent"
	"github.com/openclaw/taskweave/internal/config"
	"github.com/openclaw/taskweave/internal/executor"
	"github.com/openclaw/taskweave/internal/gate"
	"github.com/openclaw/taskweave/internal/logging"
	"github.com/openclaw/taskweave/internal/memory"
	"github.com/openclaw/taskweave/internal/orchestrator"
	"github.com/openclaw/taskweave/internal/tasktree"
)

const version = "0.1.0"

func init() {
	// Env vars set in the environment keep priority over .env entries.
	_ = godotenv.Load()
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "run":
		runTree(args)
	case "validate":
		validateTree(args)
	case "inspect":
		inspectTree(args)
	case "version":
		fmt.Printf("taskweave version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: taskweave <command> [options]

Commands:
  run                   Rehearse a task tree and record the episode
  validate              Check a tree file against the structural invariants
  inspect               Show tree shape and fact flow
  version               Show version
  help                  Show this help

Tree Options:
  -f, --file <path>     Tree file path (default: ./tree.yaml)

Run Options:
  --goal <text>         Goal recorded for the run (default: root node's goal)
  --tag <tag>           Context tag (repeatable)
  --config <path>       Config file path (default: ./taskweave.toml)`)
}

// resolveTreeFile finds the tree file path from args.
// Supports: -f <path>, --file <path>, --file=<path>, or defaults to ./tree.yaml
func resolveTreeFile(args []string) (string, []string) {
	// Splice into a fresh slice so the caller's args stay untouched.
	splice := func(from, to int) []string {
		remaining := make([]string, 0, len(args)-(to-from))
		remaining = append(remaining, args[:from]...)
		remaining = append(remaining, args[to:]...)
		return remaining
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case (arg == "-f" || arg == "--file") && i+1 < len(args):
			return args[i+1], splice(i, i+2)
		case strings.HasPrefix(arg, "--file="):
			return strings.TrimPrefix(arg, "--file="), splice(i, i+1)
		case strings.HasPrefix(arg, "-f="):
			return strings.TrimPrefix(arg, "-f="), splice(i, i+1)
		}
	}
	return "tree.yaml", args
}

func loadTree(path string) (*tasktree.Tree, []string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error: %s not found\n", path)
		fmt.Fprintln(os.Stderr, "Use -f <path> to specify a different tree file")
		os.Exit(1)
	}
	tree, warnings, err := tasktree.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return tree, warnings
}

// runTree rehearses a tree: every leaf succeeds and yields placeholder
// values for its declared facts, so the full control flow, fact plumbing and
// episode recording run for real while the agent boundary stays stubbed.
func runTree(args []string) {
	treePath, args := resolveTreeFile(args)

	goal := ""
	var tags []string
	configPath := ""
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--goal" && i+1 < len(args):
			i++
			goal = args[i]
		case arg == "--tag" && i+1 < len(args):
			i++
			tags = append(tags, args[i])
		case arg == "--config" && i+1 < len(args):
			i++
			configPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown option: %s\n", arg)
			os.Exit(1)
		}
	}

	cfg := loadConfig(configPath)
	logger := logging.New()
	logger.SetLevel(logging.ParseLevel(cfg.Log.Level))

	tree, warnings := loadTree(treePath)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	if goal == "" {
		goal = tree.Root().Goal
	}

	episodes := openEpisodicStore(cfg)
	defer episodes.Close()

	o := orchestrator.New(rehearsalInvoker(tree), gate.CheckerFunc(passGate), episodes, orchestrator.Options{
		AgentTimeout: cfg.AgentTimeout(),
		GateTimeout:  cfg.GateTimeout(),
		FactTTL:      cfg.FactTTL(),
		SimilarLimit: cfg.Run.SimilarLimit,
	})
	o.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, rc, err := o.Run(ctx, tree, goal, tags)

	if len(rc.Prior) > 0 {
		fmt.Printf("similar past runs:\n")
		for _, ep := range rc.Prior {
			fmt.Printf("  %s  %-9s  %s\n", ep.Timestamp.Format("2006-01-02"), ep.Outcome, ep.GoalDescription)
		}
	}

	printResult(res.Root, 0)
	fmt.Printf("\nrun %s: %s in %s (episode %s)\n", res.RunID, res.State, res.Duration.Round(time.Millisecond), res.EpisodeID)

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if res.State != orchestrator.StateSucceeded {
		os.Exit(1)
	}
}

// rehearsalInvoker fabricates success for every leaf, producing each
// declared fact key with a marker value so fact flow is visible downstream.
func rehearsalInvoker(tree *tasktree.Tree) agent.Invoker {
	return agent.InvokerFunc(func(ctx context.Context, req agent.Request) (agent.Result, error) {
		facts := map[string]string{}
		if idx, ok := tree.Lookup(req.NodeID); ok {
			for _, k := range tree.Node(idx).ProducedFacts {
				facts[k] = "rehearsed:" + req.NodeID
			}
		}
		return agent.Result{
			Succeeded:     true,
			ProducedFacts: facts,
			Narrative:     "rehearsed: " + req.Goal,
		}, nil
	})
}

func passGate(ctx context.Context, gateName string, phaseContext map[string]string) (bool, []string, error) {
	return true, []string{"rehearsal: " + gateName + " not evaluated"}, nil
}

func printResult(r executor.PhaseResult, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%-9s %s\n", indent, r.Status, r.NodeID)
	if len(r.Children) == 0 {
		for _, d := range r.Diagnostics {
			fmt.Printf("%s  ! %s\n", indent, d)
		}
	}
	for _, c := range r.Children {
		printResult(c, depth+1)
	}
}

// validateTree checks the structural invariants and reports warnings.
func validateTree(args []string) {
	treePath, _ := resolveTreeFile(args)
	tree, warnings := loadTree(treePath)

	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
	fmt.Printf("%s: valid (%d nodes, %d leaves)\n", treePath, tree.Len(), len(tree.Leaves()))
}

// inspectTree prints the tree shape plus each leaf's fact flow and gate.
func inspectTree(args []string) {
	treePath, _ := resolveTreeFile(args)
	tree, _ := loadTree(treePath)

	fmt.Print(tree.String())

	fmt.Println("\nleaves:")
	for _, idx := range tree.Leaves() {
		n := tree.Node(idx)
		fmt.Printf("  %s\n", n.ID)
		if n.Goal != "" {
			fmt.Printf("    goal: %s\n", n.Goal)
		}
		if len(n.RequiredFacts) > 0 {
			fmt.Printf("    requires: %s\n", strings.Join(n.RequiredFacts, ", "))
		}
		if len(n.ProducedFacts) > 0 {
			fmt.Printf("    produces: %s\n", strings.Join(n.ProducedFacts, ", "))
		}
		if n.Gate != "" {
			fmt.Printf("    gate: %s\n", n.Gate)
		}
		if n.Timeout > 0 {
			fmt.Printf("    timeout: %s\n", n.Timeout)
		}
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		cfg, err := config.LoadDefault()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func openEpisodicStore(cfg *config.Config) memory.EpisodicStore {
	var (
		store memory.EpisodicStore
		err   error
	)
	switch cfg.Episodic.Store {
	case "sqlite":
		store, err = memory.NewSQLiteStore(cfg.Episodic.Path, nil)
	default:
		store, err = memory.NewJSONLStore(cfg.Episodic.Path, nil)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open episodic store: %v\n", err)
		os.Exit(1)
	}
	return store
}
