package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/searchstack/osdeploy/internal/kube"
	"github.com/searchstack/osdeploy/internal/manifest"
	"github.com/searchstack/osdeploy/internal/readiness"
)

// Outcome classifies how a step ended.
type Outcome int

const (
	Succeeded Outcome = iota
	FailedRequired
	FailedOptional
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case FailedRequired:
		return "failed"
	case FailedOptional:
		return "failed (continued)"
	default:
		return "unknown"
	}
}

// StepResult records one step's outcome for the run report.
type StepResult struct {
	Step    string
	Outcome Outcome
	Err     error
}

// StepError is the failure of a required step. It aborts the plan; the
// remaining steps are never attempted.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Diagnostics surfaces any context attached to the underlying failure.
func (e *StepError) Diagnostics() string {
	var timeoutErr *readiness.TimeoutError
	if errors.As(e.Err, &timeoutErr) {
		return timeoutErr.Diagnostics()
	}
	return ""
}

// Orchestrator interprets a plan against the cluster: apply each step's
// manifests, then block on its readiness gate. Execution is strictly
// sequential; the first required failure aborts the run.
type Orchestrator struct {
	client    kube.Interface
	waiter    *readiness.Waiter
	manifests *manifest.Set
}

// NewOrchestrator wires the orchestrator to its collaborators.
func NewOrchestrator(client kube.Interface, manifests *manifest.Set) *Orchestrator {
	return &Orchestrator{
		client:    client,
		waiter:    readiness.NewWaiter(client),
		manifests: manifests,
	}
}

// Run executes the plan in declared order. The returned results cover every
// attempted step; steps after an abort are absent. The error, when non-nil,
// is a *StepError for the step that aborted the run.
func (o *Orchestrator) Run(ctx context.Context, plan *Plan) ([]StepResult, error) {
	if err := o.client.EnsureNamespace(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure namespace: %w", err)
	}

	results := make([]StepResult, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		slog.Info("running step", "step", step.Name)

		err := o.runStep(ctx, step)
		if err == nil {
			results = append(results, StepResult{Step: step.Name, Outcome: Succeeded})
			continue
		}

		if !step.Required {
			slog.Warn("optional step failed, continuing", "step", step.Name, "error", err)
			results = append(results, StepResult{Step: step.Name, Outcome: FailedOptional, Err: err})
			continue
		}

		stepErr := &StepError{Step: step.Name, Err: err}
		results = append(results, StepResult{Step: step.Name, Outcome: FailedRequired, Err: stepErr})
		return results, stepErr
	}
	return results, nil
}

func (o *Orchestrator) runStep(ctx context.Context, step Step) error {
	for _, name := range step.Manifests {
		rendered, err := o.manifests.Render(name)
		if err != nil {
			return err
		}
		if err := o.client.Apply(ctx, rendered); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	if step.Readiness != nil {
		if err := o.waiter.Wait(ctx, *step.Readiness); err != nil {
			return err
		}
	}
	return nil
}
