package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/danielterwiel/stepvis/executor"
	"github.com/danielterwiel/stepvis/step"
	"github.com/danielterwiel/stepvis/track"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run JavaScript and capture its step log (stateless execution)",
	Long: `Execute JavaScript in a sandboxed interpreter and capture every tracked
container mutation as a step.

Code can be provided via:
  - File argument: stepvis run script.js
  - Inline flag: stepvis run -c 'console.log(1+1)'
  - Stdin: echo 'console.log(1+1)' | stepvis run

With --entry the named function is called after the source evaluates, using
the JSON values given by --arg. With --assert the run becomes a test: the
assertion source executes after the entry point returns and decides the
verdict.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().String("entry", "", "Function to call after the source evaluates")
	cmd.Flags().StringArray("arg", nil, "Entry point argument as JSON (repeatable)")
	cmd.Flags().String("assert", "", "Assertion source run after the entry point returns")
	cmd.Flags().Bool("steps", false, "Print the captured step log as a table")
	cmd.Flags().Bool("json", false, "Print the full result as JSON")
	cmd.Flags().Bool("replay", false, "Re-apply the step log host-side and verify every snapshot")
	cmd.Flags().String("memory", "256mb", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	addGuardFlags(cmd)
}

func runRun(cmd *cobra.Command, args []string) {
	code, _ := cmd.Flags().GetString("code")
	entry, _ := cmd.Flags().GetString("entry")
	rawArgs, _ := cmd.Flags().GetStringArray("arg")
	assert, _ := cmd.Flags().GetString("assert")
	showSteps, _ := cmd.Flags().GetBool("steps")
	asJSON, _ := cmd.Flags().GetBool("json")
	replay, _ := cmd.Flags().GetBool("replay")

	var source string

	switch {
	case code != "":
		source = code
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		source = string(data)
	default:
		// Check if stdin has data (not a terminal)
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			// No piped input, show help
			cmd.Help()
			return
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		source = string(data)
		if source == "" {
			cmd.Help()
			return
		}
	}

	engine, err := newEngine(cmd, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	runner, err := executor.New(
		executor.NewEngineHost(engine),
		executor.WithGuardDefaults(buildGuardConfig(cmd)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	res := runner.Execute(context.Background(), executor.Request{
		Source:     source,
		EntryPoint: entry,
		Args:       parseArgs(rawArgs),
		Assertions: assert,
	})

	if asJSON {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		if !res.Success && res.Error != "" {
			os.Exit(1)
		}
		return
	}

	fmt.Print(res.Output)
	renderConsole(os.Stdout, res.ConsoleLogs)

	if res.Error != "" {
		if res.Stack != "" {
			fmt.Fprintln(os.Stderr, res.Stack)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", res.Error)
		os.Exit(1)
	}

	if res.Result != nil {
		fmt.Println(formatValue(res.Result))
	}
	if showSteps {
		renderSteps(os.Stdout, res.Steps)
	}
	if replay {
		if err := verifyReplay(res.Steps); err != nil {
			fmt.Fprintf(os.Stderr, "Error: replay mismatch: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("replay verified: %d step(s)\n", len(res.Steps))
	}
}

// formatValue renders a JSON value for terminal output. Strings print bare;
// everything else prints as compact JSON.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func renderConsole(w io.Writer, entries []step.ConsoleEntry) {
	for _, e := range entries {
		parts := make([]string, 0, len(e.Args))
		for _, a := range e.Args {
			parts = append(parts, formatValue(a))
		}
		fmt.Fprintf(w, "[%s] %s\n", e.Level, strings.Join(parts, " "))
	}
}

func renderSteps(w io.Writer, steps []step.Step) {
	if len(steps) == 0 {
		fmt.Fprintln(w, "no steps captured")
		return
	}
	table := tablewriter.NewWriter(w)
	table.Header("#", "Type", "Target", "Args", "State")
	for i, s := range steps {
		args := make([]string, 0, len(s.Args))
		for _, a := range s.Args {
			args = append(args, formatValue(a))
		}
		table.Append(
			strconv.Itoa(i+1),
			s.Type,
			s.Target,
			strings.Join(args, ", "),
			formatValue(s.Result),
		)
	}
	table.Render()
}

// verifyReplay re-applies the step log container by container and checks
// every recorded snapshot against the recomputed state.
func verifyReplay(steps []step.Step) error {
	seen := make(map[string]bool)
	for _, s := range steps {
		if seen[s.Target] {
			continue
		}
		seen[s.Target] = true
		if err := track.ReplayCheck(track.FilterTarget(steps, s.Target)); err != nil {
			return fmt.Errorf("target %s: %w", s.Target, err)
		}
	}
	return nil
}
