// Package readiness gates deployment steps on observable cluster state. The
// waiter translates a condition spec into one poll-until-timeout call on the
// resource client and, when the window elapses, gathers diagnostics for the
// failure report. It never retries; callers wanting another attempt call
// Wait again.
package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/searchstack/osdeploy/internal/kube"
	"github.com/searchstack/osdeploy/internal/util/labels"
)

// ConditionKind names the two condition shapes the deployment plan uses.
type ConditionKind string

const (
	// JobComplete holds when the named job reports the Complete condition.
	JobComplete ConditionKind = "JobComplete"
	// PodsReady holds when at least Count pods matching Selector are ready.
	PodsReady ConditionKind = "PodsReady"
)

// ConditionSpec is one readiness gate: what to observe and how long to wait.
type ConditionSpec struct {
	Kind     ConditionKind
	Name     string // job name for JobComplete
	Selector string // label selector for PodsReady and for diagnostics
	Count    int    // minimum ready pods for PodsReady; 0 means 1
	Timeout  time.Duration
}

// JobCompleteSpec gates on the named job reaching Complete.
func JobCompleteSpec(name string, timeout time.Duration) ConditionSpec {
	return ConditionSpec{
		Kind:     JobComplete,
		Name:     name,
		Selector: labels.Job(name),
		Timeout:  timeout,
	}
}

// PodsReadySpec gates on count ready pods matching selector.
func PodsReadySpec(selector string, count int, timeout time.Duration) ConditionSpec {
	return ConditionSpec{
		Kind:     PodsReady,
		Selector: selector,
		Count:    count,
		Timeout:  timeout,
	}
}

func (s ConditionSpec) String() string {
	switch s.Kind {
	case JobComplete:
		return fmt.Sprintf("job %s complete", s.Name)
	case PodsReady:
		n := s.Count
		if n < 1 {
			n = 1
		}
		return fmt.Sprintf("%d pod(s) matching %s ready", n, s.Selector)
	default:
		return string(s.Kind)
	}
}

// TimeoutError reports a condition that did not hold within its window,
// carrying best-effort diagnostics collected after the fact.
type TimeoutError struct {
	Spec      ConditionSpec
	Logs      string
	PodStates string
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.Spec.Timeout, e.Spec)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Diagnostics renders the collected context for the failure report.
func (e *TimeoutError) Diagnostics() string {
	var b strings.Builder
	if e.PodStates != "" {
		b.WriteString("pod states:\n")
		b.WriteString(e.PodStates)
	}
	if e.Logs != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("recent logs:\n")
		b.WriteString(e.Logs)
	}
	return b.String()
}

// Waiter evaluates condition specs against the cluster.
type Waiter struct {
	client kube.Interface
}

// NewWaiter returns a waiter bound to the resource client.
func NewWaiter(client kube.Interface) *Waiter {
	return &Waiter{client: client}
}

// Wait blocks until the condition holds or its timeout elapses. On timeout
// it returns a *TimeoutError with diagnostics attached; diagnostic
// collection failures never mask the timeout itself.
func (w *Waiter) Wait(ctx context.Context, spec ConditionSpec) error {
	slog.Info("waiting for condition", "condition", spec.String(), "timeout", spec.Timeout)

	cond, err := w.conditionFunc(spec)
	if err != nil {
		return err
	}

	err = w.client.WaitForCondition(ctx, spec.Timeout, cond)
	if err == nil {
		return nil
	}
	if !kube.IsWaitTimeout(err) {
		return fmt.Errorf("condition %s failed: %w", spec, err)
	}

	timeoutErr := &TimeoutError{Spec: spec, Err: err}
	w.collectDiagnostics(ctx, spec, timeoutErr)
	slog.Error("condition not met", "condition", spec.String(), "timeout", spec.Timeout)
	return timeoutErr
}

func (w *Waiter) conditionFunc(spec ConditionSpec) (kube.ConditionFunc, error) {
	switch spec.Kind {
	case JobComplete:
		return w.jobComplete(spec.Name), nil
	case PodsReady:
		count := spec.Count
		if count < 1 {
			count = 1
		}
		return w.podsReady(spec.Selector, count), nil
	default:
		return nil, fmt.Errorf("unknown condition kind %q", spec.Kind)
	}
}

// jobComplete observes the named job. A missing job keeps the poll going
// (the apply may still be propagating); a Failed condition aborts the wait
// immediately rather than burning the rest of the window.
func (w *Waiter) jobComplete(name string) kube.ConditionFunc {
	return func(ctx context.Context) (bool, error) {
		job, err := w.client.Job(ctx, name)
		if err != nil {
			if kube.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		for _, c := range job.Status.Conditions {
			if c.Status != corev1.ConditionTrue {
				continue
			}
			switch c.Type {
			case batchv1.JobComplete:
				return true, nil
			case batchv1.JobFailed:
				return false, fmt.Errorf("job %s failed: %s", name, c.Message)
			}
		}
		return false, nil
	}
}

// podsReady observes the selector's pods. List errors abort the wait: a
// failing list (RBAC, API outage) would otherwise burn the whole window.
func (w *Waiter) podsReady(selector string, count int) kube.ConditionFunc {
	return func(ctx context.Context) (bool, error) {
		pods, err := w.client.Pods(ctx, selector)
		if err != nil {
			return false, err
		}
		ready := 0
		for i := range pods {
			if isPodReady(&pods[i]) {
				ready++
			}
		}
		return ready >= count, nil
	}
}

// collectDiagnostics attaches recent logs and a pod listing for the spec's
// selector. Strictly best-effort: errors here are swallowed.
func (w *Waiter) collectDiagnostics(ctx context.Context, spec ConditionSpec, out *TimeoutError) {
	if spec.Selector == "" {
		return
	}
	if logs, err := w.client.PodLogs(ctx, spec.Selector, 100); err == nil {
		out.Logs = logs
	}
	pods, err := w.client.Pods(ctx, spec.Selector)
	if err != nil {
		return
	}
	var b strings.Builder
	for i := range pods {
		state := "not ready"
		if isPodReady(&pods[i]) {
			state = "ready"
		}
		fmt.Fprintf(&b, "  %s: %s (%s)\n", pods[i].Name, pods[i].Status.Phase, state)
	}
	out.PodStates = b.String()
}

// isPodReady reports whether the pod is running, not terminating, and has
// the Ready condition set.
func isPodReady(pod *corev1.Pod) bool {
	if pod.DeletionTimestamp != nil {
		return false
	}
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady && c.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}
