package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchstack/osdeploy/internal/config"
)

func testOptions(nodes int) *config.Options {
	return &config.Options{
		Nodes:    nodes,
		Timeouts: config.TestTimeouts(),
		Env: config.Environment{
			Namespace:   "opensearch",
			ManifestDir: "manifests",
			BackupRoot:  "backups",
		},
	}
}

func TestBuildPlanPhaseOrder(t *testing.T) {
	t.Parallel()

	plan := BuildPlan(testOptions(3))

	var names []string
	for _, s := range plan.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"certs-storage",
		"cert-generation",
		"configuration",
		"services",
		"data-storage",
		"search-nodes",
		"dashboards",
	}, names)

	for _, s := range plan.Steps {
		assert.True(t, s.Required, "primary deployment step %s must be required", s.Name)
	}
}

func TestBuildPlanScalesWithNodeCount(t *testing.T) {
	t.Parallel()

	plan := BuildPlan(testOptions(5))

	var dataStep, nodeStep Step
	for _, s := range plan.Steps {
		switch s.Name {
		case "data-storage":
			dataStep = s
		case "search-nodes":
			nodeStep = s
		}
	}

	assert.Len(t, dataStep.Resources, 5)
	assert.Equal(t, "opensearch-data-5", dataStep.Resources[4].Name)

	require.Len(t, nodeStep.Resources, 5)
	assert.Equal(t, "opensearch-node5", nodeStep.Resources[4].Name)
	require.NotNil(t, nodeStep.Readiness)
	assert.Equal(t, 5, nodeStep.Readiness.Count)
}

func TestReverseResourcesIsExactReverseUnion(t *testing.T) {
	t.Parallel()

	plan := BuildPlan(testOptions(2))

	var forward []ResourceRef
	for _, s := range plan.Steps {
		forward = append(forward, s.Resources...)
	}

	reversed := plan.ReverseResources()
	require.Len(t, reversed, len(forward))
	for i, ref := range reversed {
		assert.Equal(t, forward[len(forward)-1-i], ref)
	}

	// Teardown starts with the last-created resource and ends with the
	// certificate claim, which must be deleted last (after its backup).
	assert.Equal(t, ResourceRef{Kind: "Deployment", Name: "opensearch-dashboards"}, reversed[0])
	assert.Equal(t, ResourceRef{Kind: "PersistentVolumeClaim", Name: "opensearch-certs"}, reversed[len(reversed)-1])
}

func TestManifestNames(t *testing.T) {
	t.Parallel()

	plan := BuildPlan(testOptions(3))
	assert.Equal(t, []string{
		ManifestCertsPVC,
		ManifestCertJob,
		ManifestConfig,
		ManifestServices,
		ManifestDataPVCs,
		ManifestNodes,
		ManifestDashboard,
	}, plan.ManifestNames())
}
