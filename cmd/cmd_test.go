package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	tt "github.com/gnoswap-labs/symex/internal/types"
	"github.com/gnoswap-labs/symex/runner"
)

func TestMain(m *testing.M) {
	logger = zap.NewNop()
	color.NoColor = true
	os.Exit(m.Run())
}

const loopSource = `package p

func Count(n int) int {
	i := 0
	for i < n {
		i++
	}
	return i
}
`

func TestRunCFGAnalysis(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.go")
	require.NoError(t, os.WriteFile(path, []byte(loopSource), 0o644))

	var buf bytes.Buffer
	found := runCFGAnalysis(&buf, logger, []string{filepath.Join(dir, "missing.go"), path}, "Count", "", true)
	require.True(t, found)
	out := buf.String()
	assert.Contains(t, out, "CFG for function Count")
	assert.Contains(t, out, "digraph mgraph {")
	assert.Contains(t, out, "fillcolor=lightyellow")

	buf.Reset()
	assert.False(t, runCFGAnalysis(&buf, logger, []string{path}, "Missing", "", false))
	assert.Empty(t, buf.String())
}

func TestPrintReportsJSON(t *testing.T) {
	reports := []tt.Report{
		{Filename: "b.go", Func: "B", Status: "completed"},
		{Filename: "a.go", Func: "A", Status: "aborted", Exits: []tt.Exit{{Threw: true, Exception: "Unknown"}}},
	}

	var buf bytes.Buffer
	require.NoError(t, printReports(&buf, reports, true, ""))

	var decoded map[string][]tt.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "A", decoded["a.go"][0].Func)
	assert.True(t, decoded["a.go"][0].Exits[0].Threw)

	path := filepath.Join(t.TempDir(), "out.json")
	buf.Reset()
	require.NoError(t, printReports(&buf, reports, true, path))
	assert.Empty(t, buf.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Func": "B"`)
}

func TestPrintReportsText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.go")
	require.NoError(t, os.WriteFile(path, []byte(loopSource), 0o644))

	reports := []tt.Report{{Filename: path, Func: "Count", Status: "completed", Exits: []tt.Exit{{Return: "{}"}}}}
	var buf bytes.Buffer
	require.NoError(t, printReports(&buf, reports, false, ""))
	assert.Contains(t, buf.String(), "func: Count")
	assert.Contains(t, buf.String(), "returns {}")
}

const derefSource = `package p

type T struct{ x int }

func Deref(p *T) int {
	if p == nil {
		return p.x
	}
	return 0
}
`

func TestRunSource(t *testing.T) {
	analyzer, err := runner.New("", zap.NewNop())
	require.NoError(t, err)

	var buf bytes.Buffer
	clean, err := runSource(&buf, strings.NewReader(derefSource), analyzer, "input.go")
	require.NoError(t, err)
	assert.False(t, clean)
	out := buf.String()
	assert.Contains(t, out, "func: Deref")
	assert.Contains(t, out, "throws NullReferenceException at input.go:7")
	assert.Contains(t, out, "return p.x", "snippet comes from the in-memory source")

	buf.Reset()
	clean, err = runSource(&buf, strings.NewReader(loopSource), analyzer, "loop.go")
	require.NoError(t, err)
	assert.True(t, clean)
	assert.Contains(t, buf.String(), "func: Count")

	_, err = runSource(&buf, strings.NewReader("package"), analyzer, "broken.go")
	assert.Error(t, err)
}
