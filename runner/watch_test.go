package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnoswap-labs/symex/internal/types"
)

func TestWatcherRelevant(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		files []string
		event fsnotify.Event
		want  bool
	}{
		{name: "write go", event: fsnotify.Event{Name: "a.go", Op: fsnotify.Write}, want: true},
		{name: "create gno", event: fsnotify.Event{Name: "a.gno", Op: fsnotify.Create}, want: true},
		{name: "remove", event: fsnotify.Event{Name: "a.go", Op: fsnotify.Remove}},
		{name: "other extension", event: fsnotify.Event{Name: "a.txt", Op: fsnotify.Write}},
		{name: "watched file", files: []string{"a.go"}, event: fsnotify.Event{Name: "./a.go", Op: fsnotify.Write}, want: true},
		{name: "sibling of watched file", files: []string{"a.go"}, event: fsnotify.Event{Name: "b.go", Op: fsnotify.Write}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := &Watcher{files: make(map[string]bool)}
			for _, f := range tt.files {
				w.files[f] = true
			}
			assert.Equal(t, tt.want, w.relevant(tt.event))
		})
	}
}

func TestWatcherHandleFileEvent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0o644))

	engine := &countingEngine{}
	var got []string
	w, err := NewWatcher(engine, nil, func(p string, reports []tt.Report) {
		got = append(got, p)
		assert.Len(t, reports, 1)
	})
	require.NoError(t, err)
	require.NoError(t, w.Add(path))
	defer w.watcher.Close()

	w.handleFileEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})
	w.handleFileEvent(fsnotify.Event{Name: filepath.Join(dir, "b.go"), Op: fsnotify.Write})

	assert.Equal(t, []string{path}, got)
	assert.Equal(t, []string{path}, engine.files)
}

func TestWatcherAddMissing(t *testing.T) {
	t.Parallel()
	w, err := NewWatcher(&countingEngine{}, nil, nil)
	require.NoError(t, err)
	defer w.watcher.Close()
	assert.Error(t, w.Add(filepath.Join(t.TempDir(), "missing")))
}
