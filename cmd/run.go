package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/symex/formatter"
	tt "github.com/gnoswap-labs/symex/internal/types"
	"github.com/gnoswap-labs/symex/runner"
)

var (
	jsonOutput  bool
	outPath     string
	watchMode   bool
	cacheDir    string
	workers     int
	failOnThrow bool
	stdinName   string
)

var runCmd = &cobra.Command{
	Use:   "run [paths...]",
	Short: "Explore every function of the given files and directories",
	Long: `Explore every function of the given files and directories.
With "-" as the only path, the source is read from standard input.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Println("error: Please provide file or directory paths")
			os.Exit(1)
		}

		analyzer, err := runner.New(cfgFile, logger)
		if err != nil {
			logger.Fatal("Failed to initialize analyzer", zap.Error(err))
		}
		if cacheDir != "" {
			cache, err := runner.NewCache(cacheDir, cfgFile)
			if err != nil {
				logger.Fatal("Failed to open cache", zap.String("dir", cacheDir), zap.Error(err))
			}
			analyzer.UseCache(cache)
		}

		if len(args) == 1 && args[0] == "-" {
			clean, err := runSource(os.Stdout, os.Stdin, analyzer, stdinName)
			if err != nil {
				logger.Fatal("Failed to analyze standard input", zap.Error(err))
			}
			if !clean && failOnThrow {
				os.Exit(1)
			}
			return
		}

		if watchMode {
			runWatch(analyzer, args)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if !runAnalysis(ctx, analyzer, args) && failOnThrow {
			os.Exit(1)
		}
	},
}

func init() {
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output reports in JSON format")
	runCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (when using JSON)")
	runCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Re-run when watched files change")
	runCmd.Flags().StringVar(&cacheDir, "cache", "", "Directory for cached reports")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Number of files analyzed at once (default: number of CPUs)")
	runCmd.Flags().BoolVar(&failOnThrow, "fail-on-throw", false, "Exit with status 1 when a function may throw")
	runCmd.Flags().StringVar(&stdinName, "stdin-name", "stdin.go", "File name reported for source read from standard input")
}

// runAnalysis prints the reports of paths and reports whether no function
// may leave with an exception.
func runAnalysis(ctx context.Context, engine runner.Engine, paths []string) bool {
	opts := []runner.Option{runner.WithWorkers(workers)}
	if interactive() && !jsonOutput {
		opts = append(opts, runner.WithProgress(os.Stderr))
	}
	reports, err := runner.ProcessFiles(ctx, logger, engine, paths, runner.ProcessFile, opts...)
	if err != nil {
		logger.Error("Error processing files", zap.Error(err))
		os.Exit(1)
	}

	if err := printReports(os.Stdout, reports, jsonOutput, outPath); err != nil {
		logger.Error("Error printing reports", zap.Error(err))
	}
	return noThrows(reports)
}

// runSource explores the source read from r under filename and prints its
// reports to w.
func runSource(w io.Writer, r io.Reader, engine runner.Engine, filename string) (bool, error) {
	source, err := io.ReadAll(r)
	if err != nil {
		return false, fmt.Errorf("error reading source: %w", err)
	}
	reports, err := runner.ProcessSource(engine, filename, source)
	if err != nil {
		return false, err
	}

	if jsonOutput {
		if err := printReports(w, reports, true, outPath); err != nil {
			return false, err
		}
	} else {
		fmt.Fprint(w, formatter.GenerateFormattedReport(reports, formatter.NewSourceCode(source)))
	}
	return noThrows(reports), nil
}

func noThrows(reports []tt.Report) bool {
	for _, r := range reports {
		if len(r.Thrown()) > 0 {
			return false
		}
	}
	return true
}

func runWatch(analyzer *runner.Analyzer, paths []string) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	watcher, err := runner.NewWatcher(analyzer, logger, func(_ string, reports []tt.Report) {
		if err := printReports(os.Stdout, reports, jsonOutput, ""); err != nil {
			logger.Error("Error printing reports", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	if err := watcher.Add(paths...); err != nil {
		logger.Fatal("Failed to watch paths", zap.Error(err))
	}

	runAnalysis(ctx, analyzer, paths)
	fmt.Println("Watching for changes. Press Ctrl+C to exit.")
	if err := watcher.Run(ctx); err != nil {
		logger.Error("Watcher stopped", zap.Error(err))
	}
}

func printReports(w io.Writer, reports []tt.Report, isJSON bool, jsonPath string) error {
	files, byFile := formatter.GroupByFile(reports)

	if !isJSON {
		for _, filename := range files {
			sourceCode, err := formatter.ReadSourceCode(filename)
			if err != nil {
				logger.Error("Error reading source file", zap.String("file", filename), zap.Error(err))
				sourceCode = nil
			}
			fmt.Fprint(w, formatter.GenerateFormattedReport(byFile[filename], sourceCode))
		}
		return nil
	}

	d, err := json.MarshalIndent(byFile, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling reports to JSON: %w", err)
	}
	if jsonPath == "" {
		fmt.Fprintln(w, string(d))
		return nil
	}
	if err := os.WriteFile(jsonPath, d, 0o644); err != nil {
		return fmt.Errorf("error writing JSON output file: %w", err)
	}
	return nil
}
