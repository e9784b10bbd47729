package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userV1 = `syntax = "proto3";
package acme.user;

import "google/protobuf/timestamp.proto";

message User {
  string id = 1;
  string email = 2;
  google.protobuf.Timestamp created_at = 3;
}
`

const userV2 = `syntax = "proto3";
package acme.user;

import "google/protobuf/timestamp.proto";

message User {
  string id = 1;
  google.protobuf.Timestamp created_at = 3;
}
`

const brokenProto = `syntax = "proto3";
package acme.broken;

message Broken {
  Missing field = 1;
}
`

type testState struct {
	*globalState
	stdout, stderr *bytes.Buffer
	dir            string
	configPath     string
}

// newTestState creates a workspace with a protolink.yaml keeping snapshots
// under the workspace.
func newTestState(t *testing.T, extraConfig string) *testState {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "protolink.yaml")
	cfg := "storage:\n  type: filesystem\n  filesystem_root: snapshots\nobservability:\n  log_level: error\n" + extraConfig
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))

	ts := &testState{
		stdout:     &bytes.Buffer{},
		stderr:     &bytes.Buffer{},
		dir:        dir,
		configPath: configPath,
	}
	ts.globalState = &globalState{
		ctx:    context.Background(),
		fs:     afero.NewOsFs(),
		stdout: ts.stdout,
		stderr: ts.stderr,
	}
	return ts
}

// writeProtos writes files below dir/name and returns that root.
func (ts *testState) writeProtos(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	root := filepath.Join(ts.dir, name)
	for p, content := range files {
		full := filepath.Join(root, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func (ts *testState) run(args ...string) int {
	ts.stdout.Reset()
	ts.stderr.Reset()
	return newRootCommand(ts.globalState).execute(append([]string{"--config", ts.configPath}, args...))
}

func TestRootCommand_Subcommands(t *testing.T) {
	ts := newTestState(t, "")
	root := newRootCommand(ts.globalState)

	var names []string
	for _, cmd := range root.cmd.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"link", "lint", "check", "graph", "snapshot", "watch", "serve", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_BadConfig(t *testing.T) {
	ts := newTestState(t, "")
	require.NoError(t, os.WriteFile(ts.configPath, []byte("server:\n  port: abc\n"), 0o644))

	assert.Equal(t, 1, ts.run("version"))
	assert.Contains(t, ts.stderr.String(), `invalid server port "abc"`)
}

func TestRootCommand_UnknownCommand(t *testing.T) {
	ts := newTestState(t, "")
	assert.Equal(t, 1, ts.run("compile"))
	assert.Contains(t, ts.stderr.String(), `unknown command "compile"`)
}

func TestRootCommand_RootFlag(t *testing.T) {
	ts := newTestState(t, "")
	root := ts.writeProtos(t, "proto", map[string]string{"acme/user.proto": userV1})

	require.Equal(t, 0, ts.run("--root", root, "link"), ts.stderr.String())
	assert.Contains(t, ts.stdout.String(), "Linked 2 files")
}

func TestRootCommand_MetricsTextfile(t *testing.T) {
	ts := newTestState(t, "")
	textfile := filepath.Join(ts.dir, "protolink.prom")
	cfg := "storage:\n  filesystem_root: snapshots\nobservability:\n  log_level: error\n  metrics_textfile: " + textfile + "\n"
	require.NoError(t, os.WriteFile(ts.configPath, []byte(cfg), 0o644))
	root := ts.writeProtos(t, "proto", map[string]string{"acme/user.proto": userV1})

	require.Equal(t, 0, ts.run("link", root), ts.stderr.String())

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `protolink_links_total{result="ok"} 1`)
	assert.Contains(t, string(data), "protolink_loader_cache_misses_total")
}

func TestVersionCommand(t *testing.T) {
	ts := newTestState(t, "")

	require.Equal(t, 0, ts.run("version"))
	assert.Contains(t, ts.stdout.String(), "protolink dev (go")

	require.Equal(t, 0, ts.run("version", "--json"))
	assert.Contains(t, ts.stdout.String(), `"version": "dev"`)
}
