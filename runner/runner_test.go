package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoswap-labs/symex/internal/config"
	tt "github.com/gnoswap-labs/symex/internal/types"
)

const sample = `package sample

type T struct{ x int }

func Deref(p *T) int {
	if p == nil {
		return p.x
	}
	return 0
}

func Pick(x int) int {
	if x > 10 {
		return 1
	}
	return 2
}
`

func TestAnalyzeSource(t *testing.T) {
	t.Parallel()
	a := NewWithConfig(config.Default(), nil)
	reports, err := a.AnalyzeSource("sample.go", []byte(sample))
	require.NoError(t, err)
	require.Len(t, reports, 2)

	deref, pick := reports[0], reports[1]
	assert.Equal(t, "Deref", deref.Func)
	assert.True(t, deref.Completed())
	assert.Equal(t, 5, deref.Start.Line)
	require.Len(t, deref.Thrown(), 1)
	thrown := deref.Thrown()[0]
	assert.Contains(t, thrown.Exception, "NullReferenceException")
	assert.Equal(t, 7, thrown.Origin.Line)

	assert.Equal(t, "Pick", pick.Func)
	assert.Len(t, pick.Exits, 2)
	assert.Empty(t, pick.Thrown())
	var returns []string
	for _, e := range pick.Exits {
		returns = append(returns, e.Return)
	}
	assert.Len(t, returns, 2)
	assert.NotContains(t, returns, "")
}

func TestAnalyzeSourceParseError(t *testing.T) {
	t.Parallel()
	a := NewWithConfig(config.Default(), nil)
	_, err := a.AnalyzeSource("bad.go", []byte("package"))
	assert.Error(t, err)
}

func TestStepBudgetFromConfig(t *testing.T) {
	t.Parallel()
	c := config.Default()
	c.MaxSteps = 1
	reports, err := NewWithConfig(c, nil).AnalyzeSource("sample.go", []byte(sample))
	require.NoError(t, err)
	for _, r := range reports {
		assert.Equal(t, "aborted", r.Status)
		assert.False(t, r.Completed())
	}
}

func TestNewMissingConfig(t *testing.T) {
	t.Parallel()
	a, err := New(filepath.Join(t.TempDir(), "none.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), a.Config())
}

// countingEngine reports one function per analyzed file.
type countingEngine struct {
	mu    sync.Mutex
	files []string
	fail  string
}

func (e *countingEngine) AnalyzeFile(path string) ([]tt.Report, error) {
	e.mu.Lock()
	e.files = append(e.files, path)
	e.mu.Unlock()
	if filepath.Base(path) == e.fail {
		return nil, errors.New("boom")
	}
	return []tt.Report{{Filename: path, Func: "f", Status: "completed"}}, nil
}

func (e *countingEngine) AnalyzeSource(filename string, _ []byte) ([]tt.Report, error) {
	return []tt.Report{{Filename: filename}}, nil
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("package p\n"), 0o644))
	}
}

func TestProcessPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, "b.go", "a.go", "sub/c.gno", "notes.txt", "broken.go")

	engine := &countingEngine{fail: "broken.go"}
	reports, err := ProcessPath(context.Background(), nil, engine, dir, ProcessFile, WithWorkers(2))
	require.NoError(t, err)

	var files []string
	for _, r := range reports {
		files = append(files, filepath.Base(r.Filename))
	}
	assert.Equal(t, []string{"a.go", "b.go", "c.gno"}, files, "sorted, failures skipped")
	assert.Len(t, engine.files, 4)
}

func TestProcessPathSingleFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, "a.go", "notes.txt")
	engine := &countingEngine{}

	reports, err := ProcessPath(context.Background(), nil, engine, filepath.Join(dir, "a.go"), ProcessFile)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	reports, err = ProcessPath(context.Background(), nil, engine, filepath.Join(dir, "notes.txt"), ProcessFile)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestProcessPathCancelled(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		writeFiles(t, dir, fmt.Sprintf("f%d.go", i))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ProcessPath(ctx, nil, &countingEngine{}, dir, ProcessFile, WithWorkers(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessFilesMissingPath(t *testing.T) {
	t.Parallel()
	_, err := ProcessFiles(context.Background(), nil, &countingEngine{}, []string{"/definitely/not/here"}, ProcessFile)
	assert.Error(t, err)
}

func TestProcessSource(t *testing.T) {
	t.Parallel()
	reports, err := ProcessSource(&countingEngine{}, "x.go", nil)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}
