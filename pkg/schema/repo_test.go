package schema

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protolink/pkg/api/protobuf"
)

// repo collects proto sources for a test and links them. Imports of
// well-known files such as google/protobuf/descriptor.proto are added
// automatically.
type repo struct {
	t     *testing.T
	files []*protobuf.RootNode
}

func newRepo(t *testing.T) *repo {
	t.Helper()
	return &repo{t: t}
}

func (r *repo) add(path, source string) *repo {
	r.t.Helper()
	root, err := protobuf.Parse("/source", path, strings.NewReader(source))
	require.NoError(r.t, err)
	r.files = append(r.files, root)
	return r
}

func (r *repo) withStandardImports() []*protobuf.RootNode {
	r.t.Helper()
	files := append([]*protobuf.RootNode(nil), r.files...)
	have := make(map[string]bool, len(files))
	for _, f := range files {
		have[f.Path] = true
	}
	for i := 0; i < len(files); i++ {
		for _, imp := range files[i].Imports {
			if have[imp.Path] {
				continue
			}
			root, ok, err := protobuf.StandardImport(imp.Path)
			require.NoError(r.t, err)
			if !ok {
				continue
			}
			have[imp.Path] = true
			files = append(files, root)
		}
	}
	return files
}

func (r *repo) link() (*Schema, error) {
	r.t.Helper()
	return Link(context.Background(), r.withStandardImports())
}

// schema links the sources and fails the test on any error.
func (r *repo) schema() *Schema {
	r.t.Helper()
	s, err := r.link()
	require.NoError(r.t, err)
	require.NotNil(r.t, s)
	return s
}

// linkError links the sources and returns the aggregated diagnostics.
func (r *repo) linkError() *Error {
	r.t.Helper()
	s, err := r.link()
	require.Error(r.t, err)
	require.Nil(r.t, s)
	var linkErr *Error
	require.True(r.t, errors.As(err, &linkErr), "expected *Error, got %T: %v", err, err)
	return linkErr
}
