package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/danielterwiel/stepvis/catalog"
)

var exercisesCmd = &cobra.Command{
	Use:   "exercises",
	Short: "List the exercises in a catalog directory",
	Long: `Load exercise definitions from a directory of YAML files and list them.

Each file describes one exercise: the entry point the submission must
define, skeleton code, initial data, and the test cases it has to pass.`,
	Run: runExercises,
}

func init() {
	exercisesCmd.Flags().String("dir", "exercises", "Exercise directory")
	exercisesCmd.Flags().Bool("json", false, "Print the catalog as JSON")
	rootCmd.AddCommand(exercisesCmd)
}

func runExercises(cmd *cobra.Command, args []string) {
	dir, _ := cmd.Flags().GetString("dir")
	asJSON, _ := cmd.Flags().GetBool("json")

	reg := catalog.NewRegistry()
	n, err := reg.LoadDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if n == 0 {
		fmt.Printf("No exercises found in %s\n", dir)
		return
	}

	if asJSON {
		out, err := json.MarshalIndent(reg.List(), "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Title", "Entry Point", "Tests")
	for _, ex := range reg.List() {
		table.Append(ex.ID, ex.Title, ex.EntryPoint, strconv.Itoa(len(ex.Tests)))
	}
	table.Render()
}
