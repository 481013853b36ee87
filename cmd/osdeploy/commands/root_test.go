package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersSubcommands(t *testing.T) {
	t.Parallel()

	root := Root()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "deploy")
	assert.Contains(t, names, "cleanup")
	assert.Contains(t, names, "status")
	assert.Contains(t, names, "tunnel")
	assert.Contains(t, names, "version")
}

func TestHelpExitsCleanly(t *testing.T) {
	t.Parallel()

	root := Root()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "osdeploy")
	assert.Contains(t, out.String(), "deploy")
}

func TestUnknownFlagFails(t *testing.T) {
	t.Parallel()

	root := Root()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--definitely-not-a-flag"})

	require.Error(t, root.Execute())
}

func TestVersionOutput(t *testing.T) {
	SetVersionInfo("1.2.3", "abcdef0", "2026-08-23")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	root := Root()
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
}

func TestDeployFlagBindings(t *testing.T) {
	t.Parallel()

	cmd := Deploy(&globalFlags{})
	assert.NotNil(t, cmd.Flags().Lookup("cleanup"))
	assert.NotNil(t, cmd.Flags().Lookup("force"))
	assert.NotNil(t, cmd.Flags().Lookup("nodes"))
	assert.NotNil(t, cmd.Flags().Lookup("skip-preflight"))

	short := cmd.Flags().ShorthandLookup("f")
	require.NotNil(t, short)
	assert.Equal(t, "force", short.Name)
}
