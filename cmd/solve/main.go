// Package main is the demo driver for the constraint solver: it builds a
// handful of classic problems, solves them, and prints the solution and
// search statistics.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	seed     int64
	logLevel string
	parallel int
	logFile  string
}

func (o *rootOptions) logger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  "solve",
		Level: hclog.LevelFromString(o.logLevel),
	})
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "solve",
		Short:         "Solve classic finite-domain and rule problems",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Int64Var(&opts.seed, "seed", 0, "random seed (0 picks one)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().IntVar(&opts.parallel, "parallel", 1, "race this many seeds concurrently")
	root.PersistentFlags().StringVar(&opts.logFile, "decision-log", "", "write the decision log to this file")

	root.AddCommand(newSudokuCommand(opts))
	root.AddCommand(newQueensCommand(opts))
	root.AddCommand(newMazeCommand(opts))
	root.AddCommand(newHamiltonianCommand(opts))
	return root
}
