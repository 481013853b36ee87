package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "app=opensearch", Search())
	assert.Equal(t, "app=opensearch,node=opensearch-node1", SearchNode("opensearch-node1"))
	assert.Equal(t, "app=opensearch-dashboards", Dashboards())
	assert.Equal(t, "app=opensearch-cert-backup", CertBackupHelper())
	assert.Equal(t, "job-name=opensearch-cert-generator", Job("opensearch-cert-generator"))
}
