package commands

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credbox/internal/config"
	"github.com/systmms/credbox/internal/logging"
	"github.com/systmms/credbox/tests/testutil"
)

const testPrefix = "com.example.cli"

// newTestConfig writes a credbox.yaml backed by a file vault in a temp dir.
func newTestConfig(t *testing.T, customize ...func(*testutil.TestConfigBuilder)) *config.Config {
	t.Helper()
	b := testutil.NewTestConfig(t).WithPrefix(testPrefix)
	for _, fn := range customize {
		fn(b)
	}

	return &config.Config{
		Path:   b.Write(),
		Logger: logging.NewWithWriter(io.Discard, false, true),
		// Keeps $CREDBOX_APP_ID from changing the namespace under test.
		Prefix: testPrefix,
	}
}

// execute runs the command built by newCmd and returns its standard output.
func execute(t *testing.T, cfg *config.Config, newCmd func(*config.Config) *cobra.Command, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, cfg, "", newCmd, args...)
}

func executeWithInput(t *testing.T, cfg *config.Config, stdin string, newCmd func(*config.Config) *cobra.Command, args ...string) (string, error) {
	t.Helper()
	cmd := newCmd(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// mustExecute is execute that fails the test on error.
func mustExecute(t *testing.T, cfg *config.Config, newCmd func(*config.Config) *cobra.Command, args ...string) string {
	t.Helper()
	out, err := execute(t, cfg, newCmd, args...)
	require.NoError(t, err)
	return out
}
