// Package deploy turns the fixed phase ordering of an OpenSearch rollout
// into an explicit plan interpreted by the orchestrator. The plan is built
// once from the configuration and never mutated; the cleanup engine derives
// its deletion list from the same plan so creation and teardown cannot
// drift apart.
package deploy

import (
	"github.com/searchstack/osdeploy/internal/config"
	"github.com/searchstack/osdeploy/internal/readiness"
	"github.com/searchstack/osdeploy/internal/util/labels"
	"github.com/searchstack/osdeploy/internal/util/naming"
)

// ResourceRef identifies one addressable resource. Equality is by value.
type ResourceRef struct {
	Kind string
	Name string
}

// Step is one phase of the plan: the manifests it applies, the resources
// those manifests create, and an optional readiness gate. Optional steps
// log failures and let the run continue; none of the primary deployment
// steps are optional.
type Step struct {
	Name      string
	Manifests []string
	Resources []ResourceRef
	Readiness *readiness.ConditionSpec
	Required  bool
}

// Plan is the ordered sequence of steps for one deployment run.
type Plan struct {
	Steps []Step
}

// Manifest file names. The preflight validator checks each one exists
// before any mutation.
const (
	ManifestCertsPVC  = "certs-pvc.yaml"
	ManifestCertJob   = "cert-generator-job.yaml"
	ManifestConfig    = "configmaps.yaml"
	ManifestServices  = "services.yaml"
	ManifestDataPVCs  = "data-pvcs.yaml"
	ManifestNodes     = "opensearch-nodes.yaml"
	ManifestDashboard = "dashboards.yaml"
)

// BuildPlan assembles the fixed phase ordering for the configured cluster
// shape: storage, certificate generation, configuration, services, data
// volumes, search nodes, dashboards.
func BuildPlan(opts *config.Options) *Plan {
	t := opts.Timeouts

	dataClaims := make([]ResourceRef, 0, opts.Nodes)
	nodeWorkloads := make([]ResourceRef, 0, opts.Nodes)
	for i := 1; i <= opts.Nodes; i++ {
		dataClaims = append(dataClaims, ResourceRef{Kind: "PersistentVolumeClaim", Name: naming.DataClaim(i)})
		nodeWorkloads = append(nodeWorkloads, ResourceRef{Kind: "Deployment", Name: naming.Node(i)})
	}

	nodesReady := readiness.PodsReadySpec(labels.Search(), opts.Nodes, t.Ready)
	dashboardsReady := readiness.PodsReadySpec(labels.Dashboards(), 1, t.Ready)
	certJobDone := readiness.JobCompleteSpec(naming.CertJob, t.CertJob)

	return &Plan{Steps: []Step{
		{
			Name:      "certs-storage",
			Manifests: []string{ManifestCertsPVC},
			Resources: []ResourceRef{{Kind: "PersistentVolumeClaim", Name: naming.CertClaim}},
			Required:  true,
		},
		{
			Name:      "cert-generation",
			Manifests: []string{ManifestCertJob},
			Resources: []ResourceRef{{Kind: "Job", Name: naming.CertJob}},
			Readiness: &certJobDone,
			Required:  true,
		},
		{
			Name:      "configuration",
			Manifests: []string{ManifestConfig},
			Resources: []ResourceRef{
				{Kind: "ConfigMap", Name: naming.Config},
				{Kind: "ConfigMap", Name: naming.SecurityConfig},
			},
			Required: true,
		},
		{
			Name:      "services",
			Manifests: []string{ManifestServices},
			Resources: []ResourceRef{
				{Kind: "Service", Name: naming.Service},
				{Kind: "Service", Name: naming.DiscoveryService},
				{Kind: "Service", Name: naming.Dashboards},
			},
			Required: true,
		},
		{
			Name:      "data-storage",
			Manifests: []string{ManifestDataPVCs},
			Resources: dataClaims,
			Required:  true,
		},
		{
			Name:      "search-nodes",
			Manifests: []string{ManifestNodes},
			Resources: nodeWorkloads,
			Readiness: &nodesReady,
			Required:  true,
		},
		{
			Name:      "dashboards",
			Manifests: []string{ManifestDashboard},
			Resources: []ResourceRef{{Kind: "Deployment", Name: naming.Dashboards}},
			Readiness: &dashboardsReady,
			Required:  true,
		},
	}}
}

// ManifestNames returns every manifest file the plan references, in plan
// order without duplicates.
func (p *Plan) ManifestNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, step := range p.Steps {
		for _, m := range step.Manifests {
			if !seen[m] {
				seen[m] = true
				names = append(names, m)
			}
		}
	}
	return names
}

// ReverseResources returns every resource the plan creates, in exact
// reverse creation order. This is the cleanup engine's deletion list.
func (p *Plan) ReverseResources() []ResourceRef {
	var forward []ResourceRef
	for _, step := range p.Steps {
		forward = append(forward, step.Resources...)
	}
	reversed := make([]ResourceRef, 0, len(forward))
	for i := len(forward) - 1; i >= 0; i-- {
		reversed = append(reversed, forward[i])
	}
	return reversed
}
