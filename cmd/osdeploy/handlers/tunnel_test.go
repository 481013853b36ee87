package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/searchstack/osdeploy/internal/config"
	"github.com/searchstack/osdeploy/internal/tunnel"
)

func swapTunnel(t *testing.T) {
	t.Helper()
	orig := newTunnel
	t.Cleanup(func() { newTunnel = orig })
	dir := t.TempDir()
	newTunnel = func(opts *config.Options) (*tunnel.Tunnel, error) {
		return tunnel.New(opts, tunnel.WithStateDir(dir))
	}
}

func TestTunnelStatusAndStopWithoutState(t *testing.T) {
	swapTunnel(t)
	opts := testOpts(t)

	require.NoError(t, TunnelStatus(opts))
	require.NoError(t, TunnelStop(opts))
}
