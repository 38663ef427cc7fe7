package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	tt "github.com/gnoswap-labs/symex/internal/types"
)

const settleDelay = 100 * time.Millisecond

// Watcher re-analyzes Go files when they are written.
type Watcher struct {
	engine  Engine
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	report  func(path string, reports []tt.Report)
	// files restricts events to explicitly watched files. Empty means
	// every Go file of the watched directories.
	files map[string]bool
}

func NewWatcher(engine Engine, logger *zap.Logger, report func(string, []tt.Report)) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}
	return &Watcher{
		engine:  engine,
		logger:  logger,
		watcher: fw,
		report:  report,
		files:   make(map[string]bool),
	}, nil
}

// Add watches directories recursively, and files through their directory.
func (w *Watcher) Add(paths ...string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("error accessing %s: %w", path, err)
		}
		if !info.IsDir() {
			w.files[filepath.Clean(path)] = true
			if err := w.watcher.Add(filepath.Dir(path)); err != nil {
				return fmt.Errorf("error watching %s: %w", path, err)
			}
			continue
		}
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return w.watcher.Add(p)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}
	return nil
}

// Run handles file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleFileEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	if !hasDesiredExtension(event.Name) {
		return false
	}
	return len(w.files) == 0 || w.files[filepath.Clean(event.Name)]
}

func (w *Watcher) handleFileEvent(event fsnotify.Event) {
	if !w.relevant(event) {
		return
	}
	// Editors often write in several steps; let them finish.
	time.Sleep(settleDelay)
	reports, err := w.engine.AnalyzeFile(event.Name)
	if err != nil {
		w.logger.Error("error analyzing file", zap.String("file", event.Name), zap.Error(err))
		return
	}
	w.logger.Debug("file analyzed", zap.String("file", event.Name), zap.Int("functions", len(reports)))
	if w.report != nil {
		w.report(event.Name, reports)
	}
}
