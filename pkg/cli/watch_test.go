package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/platinummonkey/protolink/pkg/loader"
	"github.com/platinummonkey/protolink/pkg/observability"
	"github.com/platinummonkey/protolink/pkg/pipeline"
)

// Every loader's parse cache runs an expiry goroutine that never stops.
// Loaders built by other tests in this package leave them behind.
var ignoreCacheJanitor = goleak.IgnoreAnyFunction("github.com/hashicorp/golang-lru/v2/expirable.NewLRU[...].func1")

func TestWatcher_RelinksOnProtoChanges(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreCacheJanitor)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.proto"), []byte(userV1), 0o644))

	relinked := make(chan struct{}, 16)
	w, err := newWatcher([]string{root}, 20*time.Millisecond, func(context.Context) {
		relinked <- struct{}{}
	}, observability.DiscardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.run(ctx) }()

	waitRelink := func(what string) {
		t.Helper()
		select {
		case <-relinked:
		case <-time.After(5 * time.Second):
			t.Fatalf("no relink after %s", what)
		}
	}
	waitRelink("start")

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.proto"), []byte(userV2), 0o644))
	waitRelink("write")

	sub := filepath.Join(root, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to pick up the new directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.proto"), []byte(brokenProto), 0o644))
	waitRelink("write in new directory")

	// Drain relinks from events that straddled the debounce window.
	time.Sleep(150 * time.Millisecond)
	for len(relinked) > 0 {
		<-relinked
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o644))
	select {
	case <-relinked:
		t.Fatal("relinked after a non-proto change")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_LinksThroughPipeline(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreCacheJanitor)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.proto"), []byte(brokenProto), 0o644))

	p := pipeline.New(loader.New(afero.NewOsFs(), []string{root}, loader.Config{}), pipeline.Options{})
	results := make(chan error, 16)
	w, err := newWatcher(p.Loader().Roots(), 20*time.Millisecond, func(ctx context.Context) {
		_, err := p.Link(ctx)
		results <- err
	}, observability.DiscardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.run(ctx) }()

	nextResult := func() error {
		t.Helper()
		select {
		case err := <-results:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("no relink")
			return nil
		}
	}
	assert.ErrorContains(t, nextResult(), "unable to resolve Missing")

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.proto"), []byte(userV1), 0o644))
	// A burst split across the debounce window can link a partial write.
	err = nextResult()
	for err != nil {
		err = nextResult()
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_RecoversFromPanics(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreCacheJanitor)

	calls := 0
	w, err := newWatcher([]string{t.TempDir()}, time.Millisecond, func(context.Context) {
		calls++
		panic("boom")
	}, observability.DiscardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.run(ctx))
	assert.Equal(t, 1, calls)
}

func TestNewWatcher_MissingRoot(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreCacheJanitor)

	_, err := newWatcher([]string{filepath.Join(t.TempDir(), "missing")}, time.Millisecond, func(context.Context) {}, observability.DiscardLogger())
	assert.Error(t, err)
}
