// Package preflight validates the host and cluster before any mutating
// action. Capability problems (OS policy, missing tools, unreachable
// control plane, missing manifests) fail hard; capacity shortfalls are
// itemized warnings only.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/searchstack/osdeploy/internal/kube"
	"github.com/searchstack/osdeploy/internal/manifest"
	"github.com/searchstack/osdeploy/internal/ui"
	"github.com/searchstack/osdeploy/internal/util/prerequisites"
)

// MinMaxMapCount is the kernel tunable floor OpenSearch needs on Linux.
const MinMaxMapCount = 262144

// Advisory capacity minimums. Below these the cluster deploys but will
// struggle; the validator warns instead of aborting.
const (
	minMemoryBytes = 8 << 30 // 8 GiB
	minCPUMilli    = 4000    // 4 cores
)

// Hooks for tests; production values are the real host environment.
var (
	hostOS          = runtime.GOOS
	maxMapCountPath = "/proc/sys/vm/max_map_count"
	checkTools      = prerequisites.CheckDefault
	confirmHost     = func(ctx context.Context, guidance string) (bool, error) {
		if !ui.Interactive() {
			return false, fmt.Errorf("no terminal to confirm host settings")
		}
		return ui.Confirm(ctx, "Proceed with deployment?", guidance)
	}
)

// Result is the validator's verdict. Warnings never fail the run; any
// failure does.
type Result struct {
	Warnings []string
	Failures []string
}

// Err returns the aggregated failures, nil when the preflight passed.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, errors.New(f))
	}
	return fmt.Errorf("preflight failed: %w", errors.Join(errs...))
}

// Validator runs the pre-mutation checks.
type Validator struct {
	client            kube.Interface
	manifests         *manifest.Set
	requiredManifests []string
}

// New builds a validator. requiredManifests is every file the plan will
// reference.
func New(client kube.Interface, manifests *manifest.Set, requiredManifests []string) *Validator {
	return &Validator{
		client:            client,
		manifests:         manifests,
		requiredManifests: requiredManifests,
	}
}

// Run executes all checks in order and returns the combined verdict. Checks
// keep going past failures so the operator sees the full picture at once.
func (v *Validator) Run(ctx context.Context) *Result {
	r := &Result{}

	v.checkHostOS(ctx, r)
	v.checkTools(r)
	v.checkControlPlane(ctx, r)
	v.checkCapacity(ctx, r)
	v.checkManifests(r)

	slog.Info("preflight finished", "warnings", len(r.Warnings), "failures", len(r.Failures))
	return r
}

// checkHostOS applies the per-OS policy: Linux must satisfy the kernel
// tunable, macOS gets guidance plus an explicit confirmation (the tunable
// lives inside the container VM there), anything else is unsupported.
func (v *Validator) checkHostOS(ctx context.Context, r *Result) {
	switch hostOS {
	case "linux":
		raw, err := os.ReadFile(maxMapCountPath)
		if err != nil {
			r.Failures = append(r.Failures,
				fmt.Sprintf("cannot read %s: %v", maxMapCountPath, err))
			return
		}
		value, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			r.Failures = append(r.Failures,
				fmt.Sprintf("cannot parse %s: %v", maxMapCountPath, err))
			return
		}
		if value < MinMaxMapCount {
			r.Failures = append(r.Failures, fmt.Sprintf(
				"vm.max_map_count is %d, OpenSearch needs at least %d; run: sudo sysctl -w vm.max_map_count=%d",
				value, MinMaxMapCount, MinMaxMapCount))
		}
	case "darwin":
		guidance := fmt.Sprintf(
			"On macOS the nodes run inside a VM (Docker Desktop, Colima, ...). "+
				"Make sure the VM has vm.max_map_count >= %d and enough memory, "+
				"e.g.: colima ssh -- sudo sysctl -w vm.max_map_count=%d",
			MinMaxMapCount, MinMaxMapCount)
		ok, err := confirmHost(ctx, guidance)
		if err != nil {
			r.Failures = append(r.Failures, fmt.Sprintf("host confirmation failed: %v", err))
			return
		}
		if !ok {
			r.Failures = append(r.Failures, "host settings not confirmed")
		}
	default:
		r.Failures = append(r.Failures, fmt.Sprintf("unsupported host OS %q", hostOS))
	}
}

func (v *Validator) checkTools(r *Result) {
	results := checkTools()
	if err := results.Error(); err != nil {
		r.Failures = append(r.Failures, err.Error())
	}
}

func (v *Validator) checkControlPlane(ctx context.Context, r *Result) {
	version, err := v.client.ServerVersion(ctx)
	if err != nil {
		r.Failures = append(r.Failures, fmt.Sprintf("control plane unreachable: %v", err))
		return
	}
	slog.Debug("control plane reachable", "version", version)
}

// checkCapacity sums allocatable memory and CPU across all nodes. Shortfalls
// are warnings: small dev clusters are a supported, if slow, target.
func (v *Validator) checkCapacity(ctx context.Context, r *Result) {
	nodes, err := v.client.Nodes(ctx)
	if err != nil {
		r.Warnings = append(r.Warnings, fmt.Sprintf("cannot list nodes for capacity check: %v", err))
		return
	}

	var memBytes, cpuMilli int64
	for _, node := range nodes {
		mem := node.Status.Allocatable[corev1.ResourceMemory]
		cpu := node.Status.Allocatable[corev1.ResourceCPU]
		memBytes += mem.Value()
		cpuMilli += cpu.MilliValue()
	}

	if memBytes < minMemoryBytes {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"cluster has %.1f GiB allocatable memory, %d GiB recommended",
			float64(memBytes)/(1<<30), minMemoryBytes>>30))
	}
	if cpuMilli < minCPUMilli {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"cluster has %.1f allocatable cores, %d recommended",
			float64(cpuMilli)/1000, minCPUMilli/1000))
	}
}

func (v *Validator) checkManifests(r *Result) {
	for _, name := range v.manifests.Missing(v.requiredManifests) {
		r.Failures = append(r.Failures, fmt.Sprintf(
			"manifest %s missing from %s", name, v.manifests.Dir()))
	}
}
