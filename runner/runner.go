// Package runner explores every function of Go source files and collects
// one report per function.
package runner

import (
	"fmt"
	"go/token"
	"os"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
	"github.com/gnoswap-labs/symex/internal/config"
	"github.com/gnoswap-labs/symex/internal/symex/engine"
	tt "github.com/gnoswap-labs/symex/internal/types"
)

// Engine analyzes files or in-memory sources.
type Engine interface {
	AnalyzeFile(path string) ([]tt.Report, error)
	AnalyzeSource(filename string, source []byte) ([]tt.Report, error)
}

// Analyzer runs one exploration per function, several at a time.
type Analyzer struct {
	config  config.Config
	logger  *zap.Logger
	cache   *Cache
	workers int
}

var _ Engine = (*Analyzer)(nil)

// New loads the configuration at configurationPath; an empty path or a
// missing file selects the defaults.
func New(configurationPath string, logger *zap.Logger) (*Analyzer, error) {
	c, err := config.Load(configurationPath)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(c, logger), nil
}

func NewWithConfig(c config.Config, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{config: c, logger: logger, workers: runtime.NumCPU()}
}

// UseCache makes AnalyzeFile reuse reports of unchanged files.
func (a *Analyzer) UseCache(c *Cache) { a.cache = c }

func (a *Analyzer) Config() config.Config { return a.config }

func (a *Analyzer) AnalyzeFile(path string) ([]tt.Report, error) {
	if a.cache != nil {
		if reports, ok := a.cache.Get(path); ok {
			a.logger.Debug("cache hit", zap.String("file", path))
			return reports, nil
		}
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	reports, err := a.AnalyzeSource(path, source)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		if err := a.cache.Set(path, reports); err != nil {
			a.logger.Warn("failed to cache reports", zap.String("file", path), zap.Error(err))
		}
	}
	return reports, nil
}

// AnalyzeSource explores every function of one source file. Reports come
// in declaration order.
func (a *Analyzer) AnalyzeSource(filename string, source []byte) ([]tt.Report, error) {
	fset := token.NewFileSet()
	graphs, err := cfg.ParseFile(fset, filename, source)
	if err != nil {
		return nil, err
	}

	reports := make([]tt.Report, len(graphs))
	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup
	for i, g := range graphs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, g *cfg.Graph) {
			defer wg.Done()
			defer func() { <-sem }()

			opts := append(a.config.Options(), engine.WithLogger(a.logger))
			res := engine.New(g, opts...).Run()
			if !res.Completed() {
				a.logger.Info("exploration stopped early",
					zap.String("file", filename),
					zap.String("func", g.Name),
					zap.Int("steps", res.Steps),
				)
			}
			reports[i] = Summarize(fset, filename, res)
		}(i, g)
	}
	wg.Wait()
	return reports, nil
}

// Summarize turns an exploration result into a report.
func Summarize(fset *token.FileSet, filename string, res *engine.Result) tt.Report {
	g := res.Graph
	r := tt.Report{
		Filename: filename,
		Func:     g.Name,
		Status:   res.Status.String(),
		Steps:    res.Steps,
	}
	if g.Pos.IsValid() {
		r.Start = fset.Position(g.Pos)
		r.End = fset.Position(g.End)
	}
	for _, x := range res.ExitStates {
		exit := tt.Exit{
			Threw: x.Threw(),
			State: symbols(x),
		}
		if exit.Threw {
			exit.Exception = x.Exception.String()
			if x.Origin != nil && x.Origin.Pos.IsValid() {
				exit.Origin = fset.Position(x.Origin.Pos)
			}
		}
		if x.Return != nil && !x.Return.IsUnknown() {
			exit.Return = x.Return.String()
		}
		r.Exits = append(r.Exits, exit)
	}
	return r
}

// symbols renders the known symbol values of an exit state on one line.
func symbols(x engine.ExitState) string {
	var parts []string
	x.State.Symbols(func(sym *cfg.Symbol, v *lattice.Value) {
		if !v.IsUnknown() {
			parts = append(parts, fmt.Sprintf("%s=%s", sym, v))
		}
	})
	return strings.Join(parts, " ")
}
