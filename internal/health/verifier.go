// Package health issues the single post-deploy status query against the
// cluster and classifies the response. Anything but a literal green status
// fails verification; nothing is rolled back on failure.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/searchstack/osdeploy/internal/config"
	"github.com/searchstack/osdeploy/internal/kube"
	"github.com/searchstack/osdeploy/internal/util/labels"
	"github.com/searchstack/osdeploy/internal/util/naming"
)

// Status classifies one cluster-health response.
type Status int

const (
	Unknown Status = iota
	Green
	YellowOrRed
	Unreachable
)

func (s Status) String() string {
	switch s {
	case Green:
		return "green"
	case YellowOrRed:
		return "yellow/red"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// VerificationError means the deployed cluster did not report green. The
// run aborts non-zero but resources stay in place for inspection.
type VerificationError struct {
	Status Status
	Detail string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("cluster health verification failed: %s (%s)", e.Status, e.Detail)
}

// Verifier queries the cluster-health endpoint through the first node pod.
type Verifier struct {
	client kube.Interface
	user   string
	pass   string
	settle time.Duration
}

// New builds a verifier from the invocation options. The settle delay gives
// the cluster time to form before the one status query.
func New(client kube.Interface, opts *config.Options) *Verifier {
	return &Verifier{
		client: client,
		user:   opts.AdminUser,
		pass:   opts.AdminPassword,
		settle: opts.Timeouts.SettleDelay,
	}
}

// Verify waits the settle delay, issues the health query, and classifies
// the result. Returns the status alongside a *VerificationError for
// anything but green.
func (v *Verifier) Verify(ctx context.Context) (Status, error) {
	if v.settle > 0 {
		slog.Info("letting the cluster settle before verification", "delay", v.settle)
		select {
		case <-ctx.Done():
			return Unknown, ctx.Err()
		case <-time.After(v.settle):
		}
	}

	selector := labels.SearchNode(naming.Node(1))
	pods, err := v.client.Pods(ctx, selector)
	if err != nil {
		return Unreachable, &VerificationError{
			Status: Unreachable,
			Detail: fmt.Sprintf("failed to list pods for %s: %v", selector, err),
		}
	}
	if len(pods) == 0 {
		return Unreachable, &VerificationError{
			Status: Unreachable,
			Detail: fmt.Sprintf("no pod found for %s", selector),
		}
	}

	// Self-signed certificates from the generation job, hence -k.
	cmd := []string{
		"curl", "-sk",
		"-u", v.user + ":" + v.pass,
		"https://localhost:9200/_cluster/health",
	}
	body, err := v.client.Exec(ctx, pods[0].Name, cmd)
	if err != nil {
		return Unreachable, &VerificationError{
			Status: Unreachable,
			Detail: fmt.Sprintf("health query failed: %v", err),
		}
	}

	status := Classify(body)
	slog.Info("cluster health", "status", status.String())
	if status != Green {
		return status, &VerificationError{Status: status, Detail: body}
	}
	return Green, nil
}

// Classify maps a cluster-health response body to a status. Only the exact
// literal "green" passes.
func Classify(body string) Status {
	var response struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(body), &response); err != nil {
		return Unknown
	}
	switch response.Status {
	case "green":
		return Green
	case "yellow", "red":
		return YellowOrRed
	default:
		return Unknown
	}
}
