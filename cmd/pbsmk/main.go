package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pbsmk/pbsmk"
	pbsmklog "github.com/pbsmk/pbsmk/internal/log"
)

var (
	makefilePath string
	localFlag    bool
	dotFlag      bool
	attrsFlag    bool
	qsubPath     string
	verboseFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "pbsmk [targets...]",
	Short: "Resolve a make-style recipe into PBS/Torque batch submissions",
	Long: `pbsmk reads a make-style recipe describing batch jobs and their
ordering, resolves wildcard targets and the dependency graph, and submits
jobs to a PBS/Torque-family batch scheduler in an order that respects
every declared dependency.`,
	RunE:          runRoot,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.Flags().StringVarP(&makefilePath, "makefile", "f", "Makefile", "recipe file path")
	rootCmd.Flags().BoolVarP(&localFlag, "local", "l", false, "run targets locally instead of submitting to the batch scheduler")
	rootCmd.Flags().BoolVarP(&dotFlag, "dot", "d", false, "emit the resolved dependency graph as Graphviz dot and exit")
	rootCmd.Flags().BoolVar(&attrsFlag, "attrs", false, "print the table of recognised attribute names and exit")
	rootCmd.Flags().StringVar(&qsubPath, "qsub", "qsub", "batch submission binary (batch backend only)")
	rootCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "show INFO-level diagnostics on stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pbsmk: %s\n", err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelInfo
	}
	logger := pbsmklog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	pbsmklog.SetDefault(logger)

	if attrsFlag {
		printAttrHelp()
		return nil
	}

	f, err := os.Open(makefilePath)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", makefilePath, err)
	}
	defer f.Close()

	recipe, err := pbsmk.Parse(f, pbsmk.ProcessEnv())
	if err != nil {
		return err
	}

	targets := args
	if len(targets) == 0 {
		def := recipe.DefaultTarget()
		if def == "" {
			return fmt.Errorf("no targets specified and recipe defines no default target")
		}
		targets = []string{def}
	}

	plan, err := pbsmk.Resolve(recipe, targets)
	if err != nil {
		return err
	}

	if dotFlag {
		graph := pbsmk.NewGraphBackend()
		fmt.Print(graph.Render(plan))
		return nil
	}

	schedule, err := pbsmk.Build(plan)
	if err != nil {
		return err
	}

	var backend pbsmk.Backend
	if localFlag {
		backend = pbsmk.NewLocalBackend()
	} else {
		backend = pbsmk.NewBatchBackend(qsubPath)
	}

	driver := pbsmk.NewDriver(backend, "", logger)
	driver.SubmitLog = pbsmk.LoadSubmitLog(pbsmk.SubmitLogPath())

	return driver.Run(plan, schedule)
}

func printAttrHelp() {
	fmt.Println("Recognised attribute names:")
	for _, a := range pbsmk.AttrHelp() {
		fmt.Printf("  %-8s %s\n", a.Name, a.Meaning)
	}
}
