package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protolink/pkg/compatibility"
)

func TestCheckCommand_AgainstSources(t *testing.T) {
	ts := newTestState(t, "")
	v1 := ts.writeProtos(t, "v1", map[string]string{"acme/user.proto": userV1})
	v2 := ts.writeProtos(t, "v2", map[string]string{"acme/user.proto": userV2})

	require.Equal(t, 0, ts.run("check", v1, "--against", v1), ts.stderr.String())
	assert.Contains(t, ts.stdout.String(), "Result: COMPATIBLE")

	assert.Equal(t, 1, ts.run("check", v2, "--against", v1))
	assert.Contains(t, ts.stdout.String(), "Result: INCOMPATIBLE")
	assert.Contains(t, ts.stdout.String(), "FIELD_REMOVED")
	assert.Contains(t, ts.stderr.String(), "compatibility check failed")

	require.Equal(t, 0, ts.run("check", v2, "--against", v1, "--mode", "NONE"), ts.stderr.String())
}

func TestCheckCommand_JSON(t *testing.T) {
	ts := newTestState(t, "")
	v1 := ts.writeProtos(t, "v1", map[string]string{"acme/user.proto": userV1})
	v2 := ts.writeProtos(t, "v2", map[string]string{"acme/user.proto": userV2})

	assert.Equal(t, 1, ts.run("check", v2, "--against", v1, "--format", "json"))

	var result compatibility.CheckResult
	require.NoError(t, json.Unmarshal(ts.stdout.Bytes(), &result))
	assert.False(t, result.Compatible)
	assert.Equal(t, "BACKWARD", result.Mode)
	assert.Positive(t, result.Summary.Errors)
}

func TestCheckCommand_Flags(t *testing.T) {
	ts := newTestState(t, "")
	v1 := ts.writeProtos(t, "v1", map[string]string{"acme/user.proto": userV1})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no baseline", args: []string{"check", v1}, want: "at least one of the flags in the group [against snapshot] is required"},
		{name: "both baselines", args: []string{"check", v1, "--against", v1, "--snapshot", "acme"}, want: "if any flags in the group [against snapshot] are set none of the others can be"},
		{name: "bad mode", args: []string{"check", v1, "--against", v1, "--mode", "SIDEWAYS"}, want: "invalid compatibility mode"},
		{name: "bad format", args: []string{"check", v1, "--against", v1, "--format", "xml"}, want: `unknown output format "xml"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 1, ts.run(tt.args...))
			assert.Contains(t, ts.stderr.String(), tt.want)
		})
	}
}
