package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	tt "github.com/gnoswap-labs/symex/internal/types"
)

// Processor analyzes one file with engine.
type Processor func(engine Engine, path string) ([]tt.Report, error)

// ProcessFile is the default Processor.
func ProcessFile(engine Engine, path string) ([]tt.Report, error) {
	return engine.AnalyzeFile(path)
}

// ProcessSource analyzes an in-memory source.
func ProcessSource(engine Engine, filename string, source []byte) ([]tt.Report, error) {
	return engine.AnalyzeSource(filename, source)
}

type options struct {
	progress io.Writer
	workers  int
}

type Option func(*options)

// WithProgress draws a progress bar on w while a directory is processed.
func WithProgress(w io.Writer) Option {
	return func(o *options) { o.progress = w }
}

// WithWorkers bounds the number of files analyzed at once.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	paths []string,
	processor Processor,
	opts ...Option,
) ([]tt.Report, error) {
	var all []tt.Report
	for _, path := range paths {
		reports, err := ProcessPath(ctx, logger, engine, path, processor, opts...)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return nil, err
		}
		all = append(all, reports...)
	}
	return all, nil
}

// ProcessPath analyzes a file, or every Go file below a directory. Files
// that fail are logged and skipped; reports are ordered by file name.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine Engine,
	path string,
	processor Processor,
	opts ...Option,
) ([]tt.Report, error) {
	o := options{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}
	if !info.IsDir() {
		if !hasDesiredExtension(path) {
			return nil, nil
		}
		return processor(engine, path)
	}

	files, err := collectFiles(path)
	if err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if o.progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(o.progress),
			progressbar.OptionSetDescription(path),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
	}

	type result struct {
		file    string
		reports []tt.Report
	}
	results := make(chan result, len(files))
	sem := make(chan struct{}, o.workers)

	started := 0
	for _, file := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		started++
		go func(fp string) {
			defer func() { <-sem }()
			reports, err := processor(engine, fp)
			if err != nil {
				logger.Error("Error processing file", zap.String("file", fp), zap.Error(err))
				reports = nil
			}
			results <- result{file: fp, reports: reports}
			if bar != nil {
				_ = bar.Add(1)
			}
		}(file)
	}

	byFile := make(map[string][]tt.Report, started)
	for i := 0; i < started; i++ {
		r := <-results
		byFile[r.file] = r.reports
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(o.progress)
	}

	var reports []tt.Report
	for _, file := range files {
		reports = append(reports, byFile[file]...)
	}
	return reports, nil
}

func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && hasDesiredExtension(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

var desiredExtensions = map[string]bool{
	".go":  true,
	".gno": true,
}

func hasDesiredExtension(path string) bool {
	return desiredExtensions[filepath.Ext(path)]
}
