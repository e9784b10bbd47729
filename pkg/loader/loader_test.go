package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protolink/pkg/api/protobuf"
)

func writeFiles(t *testing.T, fsys afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
	}
}

func paths(files []*protobuf.RootNode) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func TestLoader_Load(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/protos/b.proto":         "package b;\nimport \"google/protobuf/timestamp.proto\";\nmessage B {}\n",
		"/protos/a/a.proto":       "package a;\nimport \"b.proto\";\nimport \"shared/s.proto\";\nmessage A {}\n",
		"/protos/README.md":       "not a proto",
		"/protos/.hidden/h.proto": "message Hidden {}\n",
		"/vendor/shared/s.proto":  "package shared;\nmessage S {}\n",
	})

	l := New(fsys, []string{"/protos", "/vendor"}, Config{})
	files, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"a/a.proto",
		"b.proto",
		"shared/s.proto",
		"google/protobuf/timestamp.proto",
	}, paths(files))
	assert.Equal(t, "/protos", files[0].Base)
	assert.Equal(t, "/vendor", files[2].Base)
	assert.Equal(t, "", files[3].Base)
}

func TestLoader_Cache(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/protos/a.proto": "message A {}\n",
		"/protos/b.proto": "message B {}\n",
	})

	l := New(fsys, []string{"/protos"}, Config{CacheSize: 16})
	first, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Hits: 0, Misses: 2, Entries: 2}, l.Stats())

	second, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, first[0], second[0])
	assert.Equal(t, int64(2), l.Stats().Hits)

	writeFiles(t, fsys, map[string]string{"/protos/b.proto": "message B {\n  optional int32 x = 1;\n}\n"})
	third, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, first[0], third[0])
	assert.NotSame(t, first[1], third[1])
	assert.Equal(t, int64(3), l.Stats().Misses)

	l.Purge()
	assert.Zero(t, l.Stats().Entries)
}

func TestLoader_Errors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		l := New(afero.NewMemMapFs(), []string{"/missing"}, Config{})
		_, err := l.Load(context.Background())
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("missing import is left to the linker", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFiles(t, fsys, map[string]string{"/protos/a.proto": "import \"nope.proto\";\nmessage A {}\n"})
		files, err := New(fsys, []string{"/protos"}, Config{}).Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"a.proto"}, paths(files))
	})

	t.Run("missing import in strict mode", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFiles(t, fsys, map[string]string{"/protos/a.proto": "import \"nope.proto\";\nmessage A {}\n"})
		_, err := New(fsys, []string{"/protos"}, Config{Strict: true}).Load(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Contains(t, err.Error(), "nope.proto imported by a.proto")
	})

	t.Run("syntax error", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFiles(t, fsys, map[string]string{"/protos/a.proto": "message A {\n  optional int32 = 1;\n}\n"})
		_, err := New(fsys, []string{"/protos"}, Config{}).Load(context.Background())
		require.Error(t, err)
		var syntaxErr *protobuf.SyntaxError
		require.True(t, errors.As(err, &syntaxErr))
		assert.Equal(t, "a.proto", syntaxErr.Location.Path)
	})

	t.Run("canceled", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFiles(t, fsys, map[string]string{"/protos/a.proto": "message A {}\n"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(fsys, []string{"/protos"}, Config{}).Load(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLoader_LoadSources(t *testing.T) {
	l := New(afero.NewMemMapFs(), nil, Config{})
	files, err := l.LoadSources(context.Background(), map[string]string{
		"b.proto": "package b;\nimport \"google/protobuf/descriptor.proto\";\nmessage B {}\n",
		"a.proto": "package a;\nimport \"b.proto\";\nmessage A {}\n",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.proto", "b.proto", "google/protobuf/descriptor.proto"}, paths(files))
}
