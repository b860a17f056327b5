package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/danielterwiel/stepvis/executor"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive prompt, one fresh sandbox per line",
	Long: `Start an interactive prompt. Every line runs in a fresh sandbox, so no
state carries over between entries; what persists is the compiled
interpreter, which makes each run start quickly.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Run: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.stepvis_history)")
	replCmd.Flags().String("memory", "256mb", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	addGuardFlags(replCmd)
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) {
	historyFile, _ := cmd.Flags().GetString("history")

	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".stepvis_history")
	}

	engine, err := newEngine(cmd, true)
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

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">>> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Fprintln(os.Stderr, "stepvis REPL, each line runs in a fresh sandbox (type 'exit' to quit, Ctrl+D to exit)")

	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(">>> ")
					continue
				}
				continue
			}
			if err == io.EOF {
				fmt.Println()
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			break
		}

		// Handle multi-line input
		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt("... ")
			continue
		}

		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(">>> ")
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		res := runner.Execute(context.Background(), executor.Request{Source: line})
		if res.Output != "" {
			fmt.Print(res.Output)
			if !strings.HasSuffix(res.Output, "\n") {
				fmt.Println()
			}
		}
		renderConsole(os.Stdout, res.ConsoleLogs)
		if res.Error != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", res.Error)
			continue
		}
		if res.Result != nil {
			fmt.Println(formatValue(res.Result))
		}
		if n := len(res.Steps); n > 0 {
			fmt.Printf("(%d steps)\n", n)
		}
	}
}
