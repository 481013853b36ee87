package netutil

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPortFreeAndOpen(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port

	require.False(t, PortFree(port), "bound port should not be free")
	require.True(t, PortOpen(port, time.Second), "bound port should accept connections")

	require.NoError(t, l.Close())
	require.True(t, PortFree(port), "released port should be free")
}
