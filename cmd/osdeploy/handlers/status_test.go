package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusOnEmptyCluster(t *testing.T) {
	client, _ := deployedCluster(t)
	client.Existing = map[string]bool{}
	swapClient(t, client)

	require.NoError(t, Status(context.Background(), testOpts(t)))
}

func TestStatusOnDeployedCluster(t *testing.T) {
	client, _ := deployedCluster(t)
	swapClient(t, client)

	require.NoError(t, Status(context.Background(), testOpts(t)))
}
