package commands

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbox/pkg/credbox"
	"github.com/systmms/credbox/tests/testutil"
)

func TestLastUserCommand(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)

	_, err := execute(t, cfg, NewLastUserCommand)
	assert.Error(t, err)

	mustExecute(t, cfg, NewLastUserCommand, "alice")
	assert.Equal(t, "alice\n", mustExecute(t, cfg, NewLastUserCommand))
}

func TestAppIDCommand(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)

	_, err := execute(t, cfg, NewAppIDCommand, "--no-create")
	assert.Error(t, err)

	id := mustExecute(t, cfg, NewAppIDCommand)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}\n$`), id)
	assert.Equal(t, id, mustExecute(t, cfg, NewAppIDCommand))
	assert.Equal(t, id, mustExecute(t, cfg, NewAppIDCommand, "--no-create"))
}

func TestCleanCommand(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)

	mustExecute(t, cfg, NewSetCommand, "token", "abc")
	mustExecute(t, cfg, NewUserCommand, "set", "alice", "firstName", "Ann")
	mustExecute(t, cfg, NewLastUserCommand, "alice")

	_, err := execute(t, cfg, NewCleanCommand)
	require.Error(t, err)
	assert.Equal(t, "alice\n", mustExecute(t, cfg, NewUsersCommand))

	assert.Equal(t, "Removed 3 entries under "+testPrefix+"\n", mustExecute(t, cfg, NewCleanCommand, "--force"))
	assert.Empty(t, mustExecute(t, cfg, NewKeysCommand))
}

func TestCleanCommand_OtherPrefixSurvives(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)
	mustExecute(t, cfg, NewSetCommand, "token", "abc")

	other := *cfg
	other.Prefix = testPrefix + ".other"
	mustExecute(t, &other, NewSetCommand, "token", "xyz")

	mustExecute(t, cfg, NewCleanCommand, "--force")
	assert.Equal(t, "xyz\n", mustExecute(t, &other, NewGetCommand, "token"))
}

func TestMigrateCommand(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t, func(b *testutil.TestConfigBuilder) { b.WithGeneration("legacy") })

	mustExecute(t, cfg, NewSetCommand, "token", "abc", "--accessibility", "after-first-unlock")
	mustExecute(t, cfg, NewSetCommand, "recent", "--type", "list", "a", "b")
	assert.Contains(t, mustExecute(t, cfg, NewKeysCommand, "--long"), "legacy")

	out := mustExecute(t, cfg, NewMigrateCommand, "--to", "archive")
	assert.Contains(t, out, "Target: archive")
	assert.Contains(t, out, "Migrated: 2")

	long := mustExecute(t, cfg, NewKeysCommand, "--long")
	assert.NotContains(t, long, "legacy")
	assert.Contains(t, long, "after-first-unlock")
	assert.Equal(t, "abc\n", mustExecute(t, cfg, NewGetCommand, "token"))

	out = mustExecute(t, cfg, NewMigrateCommand, "--to", "archive")
	assert.Contains(t, out, "Current: 2")

	_, err := execute(t, cfg, NewMigrateCommand, "--to", "v3")
	assert.Error(t, err)
}

func TestDumpCommand(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)
	mustExecute(t, cfg, NewUserCommand, "set", "alice", "firstName", "Ann")

	out, err := execute(t, cfg, NewDumpCommand, "alice")
	if !credbox.DumpEnabled {
		assert.ErrorIs(t, err, credbox.ErrDumpDisabled)
		assert.Empty(t, out)
		return
	}
	require.NoError(t, err)
	assert.Contains(t, out, "firstName: Ann")
}
