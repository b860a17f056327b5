package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielterwiel/stepvis/guard"
	"github.com/danielterwiel/stepvis/sandbox"
)

var rootCmd = &cobra.Command{
	Use:   "stepvis [file]",
	Short: "Sandboxed JavaScript runner that captures data-structure steps",
	Long: `stepvis - Run untrusted JavaScript safely and watch its data structures move.

Run code from files, inline strings, or stdin. Programs execute inside a
QuickJS interpreter compiled to WebAssembly with no filesystem or network
access. Loops and recursion are bounded by injected counters plus an
external watchdog, and every tracked container mutation is captured as an
ordered step log.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun, // Default to run command behavior
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")

	// Add run-specific flags to root (for default command)
	addRunFlags(rootCmd)
}

func parseMemoryLimit(s string) uint32 {
	switch strings.ToLower(s) {
	case "1mb":
		return sandbox.MemoryLimit1MB
	case "16mb":
		return sandbox.MemoryLimit16MB
	case "64mb":
		return sandbox.MemoryLimit64MB
	case "256mb":
		return sandbox.MemoryLimit256MB
	case "1gb":
		return sandbox.MemoryLimit1GB
	default:
		return 0 // use default
	}
}

// parseArgs turns --arg values into entry point arguments. Each value is
// read as JSON; anything that does not parse is passed through as a plain
// string, so --arg hello and --arg '"hello"' mean the same thing.
func parseArgs(raw []string) []any {
	args := make([]any, 0, len(raw))
	for _, r := range raw {
		var v any
		if err := json.Unmarshal([]byte(r), &v); err != nil {
			args = append(args, r)
			continue
		}
		args = append(args, v)
	}
	return args
}

func addGuardFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-loop-iterations", 0, "Loop iteration limit, 0 means the default")
	cmd.Flags().Int("max-recursion-depth", 0, "Tracked recursion depth limit, 0 means the default")
	cmd.Flags().Duration("timeout", guard.DefaultExternalTimeout, "External watchdog timeout")
	cmd.Flags().Bool("no-loop-guard", false, "Disable injected loop counters")
	cmd.Flags().Bool("no-recursion-guard", false, "Disable injected recursion tracking")
}

func buildGuardConfig(cmd *cobra.Command) guard.Config {
	loops, _ := cmd.Flags().GetInt("max-loop-iterations")
	depth, _ := cmd.Flags().GetInt("max-recursion-depth")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	noLoop, _ := cmd.Flags().GetBool("no-loop-guard")
	noRecursion, _ := cmd.Flags().GetBool("no-recursion-guard")

	return guard.Config{
		MaxLoopIterations:        loops,
		MaxRecursionDepth:        depth,
		ExternalTimeout:          timeout,
		DisableLoopInjection:     noLoop,
		DisableRecursionTracking: noRecursion,
	}
}

// newEngine builds a sandbox engine from the shared CLI flags. One-shot
// commands skip precompilation; long-lived ones pay the compile cost up
// front.
func newEngine(cmd *cobra.Command, precompile bool) (*sandbox.Engine, error) {
	noCache, _ := cmd.Root().PersistentFlags().GetBool("no-cache")
	memoryLimit, _ := cmd.Flags().GetString("memory")

	var opts []sandbox.Option
	if !noCache {
		opts = append(opts, sandbox.WithDiskCache())
	}
	if pages := parseMemoryLimit(memoryLimit); pages > 0 {
		opts = append(opts, sandbox.WithMemoryLimit(pages))
	}
	if precompile {
		opts = append(opts, sandbox.WithPrecompile())
	}
	return sandbox.NewEngine(opts...)
}
