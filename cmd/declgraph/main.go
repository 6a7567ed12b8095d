package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DeusData/declgraph/internal/store"
)

var version = "dev"

type rootFlags struct {
	db      string
	config  string
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "declgraph",
		Short:         "Kotlin declaration and usage graph",
		Long:          "declgraph extracts top-level Kotlin declarations, resolves the types they use to fully-qualified names and derives the reverse used-by relation.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if flags.verbose {
				level = slog.LevelInfo
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&flags.db, "db", "", "SQLite database path")
	root.PersistentFlags().StringVar(&flags.config, "config", "", "config file (default: <project>/.declgraph.yaml)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(newAnalyzeCmd(flags))
	root.AddCommand(newShowCmd(flags))
	root.AddCommand(newServeCmd(flags))
	return root
}

// openStore opens the --db path, falling back to the per-user default.
func openStore(flags *rootFlags) (*store.Store, error) {
	path := flags.db
	if path == "" {
		var err error
		if path, err = store.DefaultPath(); err != nil {
			return nil, err
		}
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store open %s: %w", path, err)
	}
	return s, nil
}
