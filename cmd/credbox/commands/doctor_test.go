package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbox/tests/testutil"
)

func TestDoctorCommand_Healthy(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)
	mustExecute(t, cfg, NewSetCommand, "token", "abc")
	mustExecute(t, cfg, NewUserCommand, "set", "alice", "firstName", "Ann")

	out := mustExecute(t, cfg, NewDoctorCommand)
	assert.Contains(t, out, "VAULT")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, testPrefix)
	assert.Contains(t, out, "2 entries, 1 users")
	assert.Contains(t, out, "Summary: 1/1 vaults healthy")
}

func TestDoctorCommand_AllReportsBrokenVault(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t, func(b *testutil.TestConfigBuilder) { b.WithVault("broken", "nonexistent", nil) })

	out, err := execute(t, cfg, NewDoctorCommand, "--all")
	require.Error(t, err)
	assert.Contains(t, out, "broken")
	assert.Contains(t, out, "unknown vault type")
	assert.Contains(t, out, "Summary: 1/2 vaults healthy")
}

func TestDoctorCommand_InvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t, func(b *testutil.TestConfigBuilder) { b.WithAccessibility("sometimes") })

	_, err := execute(t, cfg, NewDoctorCommand)
	assert.Error(t, err)
}
