package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/searchstack/osdeploy/internal/config"
	"github.com/searchstack/osdeploy/internal/kube"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want Status
	}{
		{"green", `{"status":"green"}`, Green},
		{"yellow", `{"status":"yellow"}`, YellowOrRed},
		{"red", `{"status":"red"}`, YellowOrRed},
		{"full response", `{"cluster_name":"opensearch","status":"green","number_of_nodes":3}`, Green},
		{"unexpected value", `{"status":"chartreuse"}`, Unknown},
		{"missing field", `{"cluster_name":"opensearch"}`, Unknown},
		{"html error page", `<html>503 Service Unavailable</html>`, Unknown},
		{"empty", ``, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.body))
		})
	}
}

func verifierOptions() *config.Options {
	return &config.Options{
		AdminUser:     "admin",
		AdminPassword: "admin",
		Timeouts:      config.TestTimeouts(), // zero settle delay
	}
}

func nodePod() corev1.Pod {
	return corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:   "opensearch-node1-7f9c",
			Labels: map[string]string{"app": "opensearch", "node": "opensearch-node1"},
		},
	}
}

func TestVerifyGreen(t *testing.T) {
	t.Parallel()

	client := kube.NewFake("opensearch")
	client.PodFixtures["app=opensearch,node=opensearch-node1"] = []corev1.Pod{nodePod()}
	client.ExecFunc = func(pod string, cmd []string) (string, error) {
		assert.Equal(t, "opensearch-node1-7f9c", pod)
		assert.Contains(t, cmd, "-u")
		assert.Contains(t, cmd, "admin:admin")
		return `{"status":"green"}`, nil
	}

	status, err := New(client, verifierOptions()).Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Green, status)
}

func TestVerifyNonGreenFails(t *testing.T) {
	t.Parallel()

	client := kube.NewFake("opensearch")
	client.PodFixtures["app=opensearch,node=opensearch-node1"] = []corev1.Pod{nodePod()}
	client.ExecFunc = func(string, []string) (string, error) {
		return `{"status":"yellow"}`, nil
	}

	status, err := New(client, verifierOptions()).Verify(context.Background())
	assert.Equal(t, YellowOrRed, status)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, YellowOrRed, verr.Status)
}

func TestVerifyUnreachable(t *testing.T) {
	t.Parallel()

	client := kube.NewFake("opensearch")
	client.PodFixtures["app=opensearch,node=opensearch-node1"] = []corev1.Pod{nodePod()}
	client.ExecFunc = func(string, []string) (string, error) {
		return "", errors.New("connection refused")
	}

	status, err := New(client, verifierOptions()).Verify(context.Background())
	assert.Equal(t, Unreachable, status)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
}

func TestVerifyPodListFailure(t *testing.T) {
	t.Parallel()

	client := kube.NewFake("opensearch")
	client.PodsErr = map[string]error{
		"app=opensearch,node=opensearch-node1": errors.New("pods is forbidden"),
	}

	status, err := New(client, verifierOptions()).Verify(context.Background())
	assert.Equal(t, Unreachable, status)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Detail, "pods is forbidden")
	assert.NotContains(t, verr.Detail, "no pod found")
}

func TestVerifyNoDesignatedPod(t *testing.T) {
	t.Parallel()

	client := kube.NewFake("opensearch")

	status, err := New(client, verifierOptions()).Verify(context.Background())
	assert.Equal(t, Unreachable, status)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Detail, "no pod found")
}
