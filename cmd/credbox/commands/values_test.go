package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/credbox/internal/errors"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/credbox"
)

func TestSetGetCommand_Types(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		typ  string
		args []string
		want string
	}{
		{name: "string", typ: "string", args: []string{"s3cr3t"}, want: "s3cr3t\n"},
		{name: "list keeps order", typ: "list", args: []string{"b", "a", "b"}, want: "b\na\nb\n"},
		{name: "set sorts and dedupes", typ: "set", args: []string{"b", "a", "b"}, want: "a\nb\n"},
		{name: "map", typ: "map", args: []string{"us=https://us", "eu=https://eu"}, want: "eu=https://eu\nus=https://us\n"},
		{name: "time", typ: "time", args: []string{"2024-05-01T12:00:00.5Z"}, want: "2024-05-01T12:00:00.5Z\n"},
		{name: "bytes", typ: "bytes", args: []string{"00ff10"}, want: "00ff10\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := newTestConfig(t)

			mustExecute(t, cfg, NewSetCommand, append([]string{"entry", "--type", tt.typ}, tt.args...)...)

			assert.Equal(t, tt.want, mustExecute(t, cfg, NewGetCommand, "entry", "--type", tt.typ))
			assert.Equal(t, tt.want, mustExecute(t, cfg, NewGetCommand, "entry"))
		})
	}
}

func TestGetCommand_JSONOutput(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)

	mustExecute(t, cfg, NewSetCommand, "endpoints", "--type", "map", "eu=https://eu")
	out := mustExecute(t, cfg, NewGetCommand, "endpoints", "--json")

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "endpoints", result["key"])
	assert.Equal(t, "map", result["type"])
	assert.Equal(t, map[string]interface{}{"eu": "https://eu"}, result["value"])
}

func TestGetCommand_Errors(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)
	mustExecute(t, cfg, NewSetCommand, "token", "abc")

	t.Run("missing key", func(t *testing.T) {
		out, err := execute(t, cfg, NewGetCommand, "absent")
		var ue dserrors.UserError
		require.ErrorAs(t, err, &ue)
		assert.Contains(t, ue.Message, "not found")
		assert.Empty(t, out)
	})

	t.Run("type mismatch prints nothing", func(t *testing.T) {
		out, err := execute(t, cfg, NewGetCommand, "token", "--type", "list")
		assert.ErrorIs(t, err, codec.ErrDecodeMismatch)
		assert.Empty(t, out)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := execute(t, cfg, NewGetCommand, "token", "--type", "tuple")
		assert.Error(t, err)
	})
}

func TestSetCommand_RejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "string takes one value", args: []string{"k", "a", "b"}},
		{name: "string needs a value", args: []string{"k"}},
		{name: "map entry without equals", args: []string{"k", "--type", "map", "novalue"}},
		{name: "bytes not hex", args: []string{"k", "--type", "bytes", "zz"}},
		{name: "time not rfc3339", args: []string{"k", "--type", "time", "yesterday"}},
		{name: "unknown accessibility", args: []string{"k", "v", "--accessibility", "sometimes"}},
		{name: "unknown type", args: []string{"k", "v", "--type", "tuple"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := newTestConfig(t)

			_, err := execute(t, cfg, NewSetCommand, tt.args...)
			var ue dserrors.UserError
			require.ErrorAs(t, err, &ue)

			assert.Equal(t, "", mustExecute(t, cfg, NewKeysCommand))
		})
	}
}

func TestSetCommand_ReservedKey(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)

	_, err := execute(t, cfg, NewSetCommand, "user.firstName.alice", "Ann")
	assert.ErrorIs(t, err, credbox.ErrReservedKey)
}

func TestDeleteCommand(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)

	mustExecute(t, cfg, NewSetCommand, "a", "1")
	mustExecute(t, cfg, NewSetCommand, "b", "2")
	mustExecute(t, cfg, NewDeleteCommand, "a", "never-stored")

	assert.Equal(t, "b\n", mustExecute(t, cfg, NewKeysCommand))
}

func TestKeysCommand(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)

	mustExecute(t, cfg, NewSetCommand, "b", "2", "--accessibility", "always")
	mustExecute(t, cfg, NewSetCommand, "a", "1")
	mustExecute(t, cfg, NewUserCommand, "set", "alice", "firstName", "Ann")

	assert.Equal(t, "a\nb\nuser.firstName.alice\n", mustExecute(t, cfg, NewKeysCommand))
	assert.Equal(t, "b\n", mustExecute(t, cfg, NewKeysCommand, "--accessibility", "always"))

	long := mustExecute(t, cfg, NewKeysCommand, "--long")
	assert.Contains(t, long, "ACCESSIBILITY")
	assert.Contains(t, long, "when-unlocked")
	assert.Contains(t, long, "always")
	assert.Contains(t, long, "archive")

	_, err := execute(t, cfg, NewKeysCommand, "--accessibility", "sometimes")
	assert.Error(t, err)
}
