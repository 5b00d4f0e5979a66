package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	for _, name := range []string{"all_4.js", "classes_0.js", "searchdata.js"} {
		raw, err := os.ReadFile(filepath.Join(fixtureDir, name))
		require.NoError(t, err)
		writeFile(t, dir, name, string(raw))
	}

	l := NewLoader(dir, Options{})
	_, err := l.Reload(context.Background())
	require.NoError(t, err)

	reloaded := make(chan *Catalog, 4)
	l.OnReload(func(c *Catalog) { reloaded <- c })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := NewWatcher(l, 50*time.Millisecond)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "classes_0.js", "var searchData=[['category_0',['Category',['c.html',1,'']]]];")

	select {
	case c := <-reloaded:
		files, err := c.Files("classes")
		require.NoError(t, err)
		assert.Equal(t, 1, files[0].Table.Len())
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherMissingDir(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := NewWatcher(NewLoader(filepath.Join(t.TempDir(), "missing"), Options{}), 0)
	err := w.Run(context.Background())
	assert.Error(t, err)
}
