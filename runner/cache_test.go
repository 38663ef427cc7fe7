package runner

import (
	"go/token"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoswap-labs/symex/internal/config"
	tt "github.com/gnoswap-labs/symex/internal/types"
)

func sampleReports(filename string) []tt.Report {
	return []tt.Report{
		{
			Filename: filename,
			Func:     "main",
			Start:    token.Position{Filename: filename, Line: 3, Column: 1},
			End:      token.Position{Filename: filename, Line: 3, Column: 15},
			Status:   "completed",
			Steps:    4,
			Exits: []tt.Exit{
				{Return: "0", State: "x=0"},
				{Threw: true, Exception: "NullReferenceException", Origin: token.Position{Filename: filename, Line: 3, Column: 5}},
			},
		},
	}
}

func TestCache(t *testing.T) {
	tmpDir := t.TempDir()
	cacheDir := filepath.Join(tmpDir, "cache")
	cache, err := NewCache(cacheDir)
	require.NoError(t, err)

	t.Run("SaveAndLoad", func(t *testing.T) {
		filename := filepath.Join(tmpDir, "test.go")
		err := os.WriteFile(filename, []byte("package main\n\nfunc main() {}\n"), 0o644)
		require.NoError(t, err)

		reports := sampleReports(filename)
		require.NoError(t, cache.Set(filename, reports))

		loaded, found := cache.Get(filename)
		assert.True(t, found)
		assert.Equal(t, reports, loaded)

		// a fresh cache reads the same entry back from disk
		reopened, err := NewCache(cacheDir)
		require.NoError(t, err)
		loaded, found = reopened.Get(filename)
		assert.True(t, found)
		assert.Equal(t, reports[0].Exits, loaded[0].Exits)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, found := cache.Get("nonexistent.go")
		assert.False(t, found)
	})

	t.Run("FileModified", func(t *testing.T) {
		filename := filepath.Join(tmpDir, "modified.go")
		err := os.WriteFile(filename, []byte("package main\n\nfunc main() {}\n"), 0o644)
		require.NoError(t, err)
		require.NoError(t, cache.Set(filename, sampleReports(filename)))

		time.Sleep(10 * time.Millisecond)
		err = os.WriteFile(filename, []byte("package main\n\nfunc main() { println(\"Hello\") }\n"), 0o644)
		require.NoError(t, err)

		_, found := cache.Get(filename)
		assert.False(t, found)
	})

	t.Run("Expired", func(t *testing.T) {
		filename := filepath.Join(tmpDir, "expired.go")
		require.NoError(t, os.WriteFile(filename, []byte("package main\n"), 0o644))
		require.NoError(t, cache.Set(filename, sampleReports(filename)))

		cache.SetMaxAge(time.Nanosecond)
		defer cache.SetMaxAge(defaultMaxAge)
		time.Sleep(time.Millisecond)

		_, found := cache.Get(filename)
		assert.False(t, found)
	})

	t.Run("InvalidateAll", func(t *testing.T) {
		filename := filepath.Join(tmpDir, "all.go")
		require.NoError(t, os.WriteFile(filename, []byte("package main\n"), 0o644))
		require.NoError(t, cache.Set(filename, sampleReports(filename)))

		cache.InvalidateAll()
		_, found := cache.Get(filename)
		assert.False(t, found)
	})
}

func TestCacheDependencyChanged(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, ".symex.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("max_steps: 100\n"), 0o644))

	cacheDir := filepath.Join(tmpDir, "cache")
	cache, err := NewCache(cacheDir, configFile)
	require.NoError(t, err)

	filename := filepath.Join(tmpDir, "a.go")
	require.NoError(t, os.WriteFile(filename, []byte("package a\n"), 0o644))
	require.NoError(t, cache.Set(filename, sampleReports(filename)))

	_, found := cache.Get(filename)
	require.True(t, found)

	require.NoError(t, os.WriteFile(configFile, []byte("max_steps: 200\n"), 0o644))
	_, found = cache.Get(filename)
	assert.False(t, found, "configuration change invalidates entries")

	// entries saved under the old configuration are dropped on load
	require.NoError(t, cache.Set(filename, sampleReports(filename)))
	require.NoError(t, os.WriteFile(configFile, []byte("max_steps: 300\n"), 0o644))
	reopened, err := NewCache(cacheDir, configFile)
	require.NoError(t, err)
	_, found = reopened.Get(filename)
	assert.False(t, found)
}

func TestAnalyzerUsesCache(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	cache, err := NewCache(filepath.Join(tmpDir, "cache"))
	require.NoError(t, err)

	filename := filepath.Join(tmpDir, "sample.go")
	require.NoError(t, os.WriteFile(filename, []byte(sample), 0o644))

	a := NewWithConfig(config.Default(), nil)
	a.UseCache(cache)
	first, err := a.AnalyzeFile(filename)
	require.NoError(t, err)

	cached, found := cache.Get(filename)
	require.True(t, found)
	assert.Equal(t, first, cached)

	second, err := a.AnalyzeFile(filename)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
