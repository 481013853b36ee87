package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/searchstack/osdeploy/internal/kube"
	"github.com/searchstack/osdeploy/internal/manifest"
	"github.com/searchstack/osdeploy/internal/readiness"
)

// fixtureManifests writes a minimal but complete manifest set, including the
// templated files, into a fresh directory.
func fixtureManifests(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		ManifestCertsPVC: `apiVersion: v1
kind: PersistentVolumeClaim
metadata:
  name: opensearch-certs
`,
		ManifestCertJob: `apiVersion: batch/v1
kind: Job
metadata:
  name: opensearch-cert-generator
`,
		ManifestConfig: `apiVersion: v1
kind: ConfigMap
metadata:
  name: opensearch-config
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: opensearch-security-config
`,
		ManifestServices: `apiVersion: v1
kind: Service
metadata:
  name: opensearch
---
apiVersion: v1
kind: Service
metadata:
  name: opensearch-discovery
---
apiVersion: v1
kind: Service
metadata:
  name: opensearch-dashboards
`,
		ManifestDataPVCs: `{{- range $i := untilStep 1 (add .Nodes 1 | int) 1 }}
---
apiVersion: v1
kind: PersistentVolumeClaim
metadata:
  name: opensearch-data-{{ $i }}
{{- end }}
`,
		ManifestNodes: `{{- range $i := untilStep 1 (add .Nodes 1 | int) 1 }}
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: opensearch-node{{ $i }}
{{- end }}
`,
		ManifestDashboard: `apiVersion: apps/v1
kind: Deployment
metadata:
  name: opensearch-dashboards
`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func readyFixturePod(name string, podLabels map[string]string) corev1.Pod {
	return corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Labels: podLabels},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodReady, Status: corev1.ConditionTrue},
			},
		},
	}
}

// healthyFake returns a fake cluster where every readiness gate of a
// 3-node plan is satisfiable.
func healthyFake() *kube.Fake {
	client := kube.NewFake("opensearch")
	client.Jobs["opensearch-cert-generator"] = &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "opensearch-cert-generator"},
		Status: batchv1.JobStatus{
			Conditions: []batchv1.JobCondition{
				{Type: batchv1.JobComplete, Status: corev1.ConditionTrue},
			},
		},
	}
	for i := 1; i <= 3; i++ {
		client.PodFixtures["app=opensearch"] = append(client.PodFixtures["app=opensearch"],
			readyFixturePod(fmt.Sprintf("opensearch-node%d-pod", i), map[string]string{"app": "opensearch"}))
	}
	client.PodFixtures["app=opensearch-dashboards"] = []corev1.Pod{
		readyFixturePod("opensearch-dashboards-pod", map[string]string{"app": "opensearch-dashboards"}),
	}
	return client
}

func newTestOrchestrator(t *testing.T, client *kube.Fake, nodes int) (*Orchestrator, *Plan) {
	t.Helper()
	set := manifest.NewSet(fixtureManifests(t), manifest.Data{Namespace: "opensearch", Nodes: nodes})
	return NewOrchestrator(client, set), BuildPlan(testOptions(nodes))
}

func TestRunCleanDeployAppliesInOrder(t *testing.T) {
	t.Parallel()

	client := healthyFake()
	orch, plan := newTestOrchestrator(t, client, 3)

	results, err := orch.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, results, len(plan.Steps))
	for _, r := range results {
		assert.Equal(t, Succeeded, r.Outcome, "step %s", r.Step)
	}

	applies := client.OpsOfPrefix("apply ")
	idx := func(op string) int {
		for i, a := range applies {
			if a == op {
				return i
			}
		}
		t.Fatalf("operation %q not recorded in %v", op, applies)
		return -1
	}

	// Storage precedes compute nodes, which precede the dashboard.
	assert.Less(t, idx("apply PersistentVolumeClaim/opensearch-certs"), idx("apply Deployment/opensearch-node1"))
	assert.Less(t, idx("apply PersistentVolumeClaim/opensearch-data-1"), idx("apply Deployment/opensearch-node1"))
	assert.Less(t, idx("apply Deployment/opensearch-node3"), idx("apply Deployment/opensearch-dashboards"))
	assert.Less(t, idx("apply Job/opensearch-cert-generator"), idx("apply ConfigMap/opensearch-config"))
}

func TestRunAbortsOnRequiredApplyFailure(t *testing.T) {
	t.Parallel()

	client := healthyFake()
	client.ApplyErr = map[string]error{
		"ConfigMap/opensearch-config": errors.New("admission webhook rejected"),
	}
	orch, plan := newTestOrchestrator(t, client, 3)

	results, err := orch.Run(context.Background(), plan)
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "configuration", stepErr.Step)

	// The run stops at the failed step; nothing later is attempted.
	require.Len(t, results, 3)
	assert.Equal(t, FailedRequired, results[2].Outcome)
	assert.Empty(t, client.OpsOfPrefix("apply Service/"))
	assert.Empty(t, client.OpsOfPrefix("apply Deployment/"))
}

func TestRunAbortsOnNodeReadinessTimeout(t *testing.T) {
	t.Parallel()

	client := healthyFake()
	client.PodFixtures["app=opensearch"] = nil // nodes never come up
	orch, plan := newTestOrchestrator(t, client, 3)

	_, err := orch.Run(context.Background(), plan)
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "search-nodes", stepErr.Step)

	var timeoutErr *readiness.TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)

	// The dashboard phase is never attempted after the abort.
	assert.Empty(t, client.OpsOfPrefix("apply Deployment/opensearch-dashboards"))
}

func TestRunContinuesPastOptionalFailure(t *testing.T) {
	t.Parallel()

	client := healthyFake()
	client.ApplyErr = map[string]error{
		"ConfigMap/opensearch-config": errors.New("rejected"),
	}
	orch, plan := newTestOrchestrator(t, client, 3)
	for i := range plan.Steps {
		if plan.Steps[i].Name == "configuration" {
			plan.Steps[i].Required = false
		}
	}

	results, err := orch.Run(context.Background(), plan)
	require.NoError(t, err)

	var outcome Outcome
	for _, r := range results {
		if r.Step == "configuration" {
			outcome = r.Outcome
		}
	}
	assert.Equal(t, FailedOptional, outcome)
	assert.NotEmpty(t, client.OpsOfPrefix("apply Service/"))
}

func TestRenderedManifestsExpandNodeCount(t *testing.T) {
	t.Parallel()

	client := healthyFake()
	client.PodFixtures["app=opensearch"] = append(client.PodFixtures["app=opensearch"],
		readyFixturePod("opensearch-node4-pod", map[string]string{"app": "opensearch"}))
	set := manifest.NewSet(fixtureManifests(t), manifest.Data{Namespace: "opensearch", Nodes: 4})
	orch := NewOrchestrator(client, set)

	_, err := orch.Run(context.Background(), BuildPlan(testOptions(4)))
	require.NoError(t, err)

	assert.Len(t, client.OpsOfPrefix("apply PersistentVolumeClaim/opensearch-data-"), 4)
	assert.NotEmpty(t, client.OpsOfPrefix("apply Deployment/opensearch-node4"))
}
