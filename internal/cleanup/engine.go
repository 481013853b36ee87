// Package cleanup converges the cluster toward "nothing deployed". Deletion
// walks the plan's resources in exact reverse creation order and is
// idempotent: resources that are already gone count as success, and no
// single failed deletion blocks the rest. The certificate claim gets the
// backup-before-destroy treatment unless the minimal variant disabled it.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/searchstack/osdeploy/internal/certbackup"
	"github.com/searchstack/osdeploy/internal/deploy"
	"github.com/searchstack/osdeploy/internal/kube"
	"github.com/searchstack/osdeploy/internal/ui"
	"github.com/searchstack/osdeploy/internal/util/naming"
)

// BackupFunc saves the certificate volume before its claim is destroyed.
// A *certbackup.BackupError return means the operator accepted possible
// data loss; any error is surfaced loudly but never stops the teardown.
type BackupFunc func(ctx context.Context) error

// ConfirmFunc asks the operator to approve the teardown.
type ConfirmFunc func(ctx context.Context) (bool, error)

// ErrRefused means the operator did not approve the teardown; nothing was
// deleted.
var ErrRefused = errors.New("cleanup not confirmed")

// Summary tallies one engine run for reporting and tests.
type Summary struct {
	Deleted []deploy.ResourceRef
	Missing []deploy.ResourceRef
	Failed  []deploy.ResourceRef
}

// Engine deletes the resources a deployment created.
type Engine struct {
	client  kube.Interface
	refs    []deploy.ResourceRef
	backup  BackupFunc
	confirm ConfirmFunc
	grace   time.Duration
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithBackup enables the certificate backup-before-destroy protocol. The
// minimal cleanup variant omits it.
func WithBackup(fn BackupFunc) Option {
	return func(e *Engine) { e.backup = fn }
}

// WithConfirm replaces the interactive confirmation.
func WithConfirm(fn ConfirmFunc) Option {
	return func(e *Engine) { e.confirm = fn }
}

// WithGrace sets the cancellation window before an unattended stale sweep.
func WithGrace(d time.Duration) Option {
	return func(e *Engine) { e.grace = d }
}

// New builds an engine for the exact reverse creation order in refs.
func New(client kube.Interface, refs []deploy.ResourceRef, opts ...Option) *Engine {
	e := &Engine{
		client:  client,
		refs:    refs,
		confirm: defaultConfirm,
		grace:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// defaultConfirm requires the operator to type "yes". Without a terminal
// there is nobody to ask, so the teardown is refused.
func defaultConfirm(ctx context.Context) (bool, error) {
	if !ui.Interactive() {
		return false, fmt.Errorf("no terminal for confirmation, re-run with --force")
	}
	return ui.ConfirmTyped(ctx,
		"Tear down the OpenSearch deployment?",
		"This deletes all cluster resources. Type \"yes\" to proceed.",
		"yes")
}

// Run tears everything down. Interactive runs require typed confirmation
// unless force is set; a refusal returns ErrRefused with nothing deleted.
// Per-resource failures are warnings — the walk always finishes.
func (e *Engine) Run(ctx context.Context, force bool) (*Summary, error) {
	if !force {
		ok, err := e.confirm(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRefused, err)
		}
		if !ok {
			return nil, ErrRefused
		}
	}

	slog.Info("tearing down deployment", "resources", len(e.refs))
	summary := e.deleteAll(ctx, e.refs)
	slog.Info("teardown finished",
		"deleted", len(summary.Deleted),
		"already-absent", len(summary.Missing),
		"failed", len(summary.Failed))
	return summary, nil
}

// staleRefs are the leftovers an incomplete prior run can leave behind.
// Deleting the claim releases its backing volume through the storage class
// reclaim policy.
func staleRefs() []deploy.ResourceRef {
	return []deploy.ResourceRef{
		{Kind: "Job", Name: naming.CertJob},
		{Kind: "PersistentVolumeClaim", Name: naming.CertClaim},
	}
}

// SweepStale removes leftovers from a previous incomplete run so a fresh
// deployment starts clean. It runs unattended inside deploy, so instead of
// interactive confirmation it waits a cancellation grace window before
// touching anything. Returns a nil summary when there was nothing stale.
func (e *Engine) SweepStale(ctx context.Context) (*Summary, error) {
	refs := staleRefs()

	stale := false
	for _, ref := range refs {
		exists, err := e.client.Exists(ctx, ref.Kind, ref.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to check for stale %s %s: %w", ref.Kind, ref.Name, err)
		}
		if exists {
			stale = true
			slog.Warn("stale resource from a previous run", "kind", ref.Kind, "name", ref.Name)
		}
	}
	if !stale {
		return nil, nil
	}

	fmt.Println(ui.Warning(fmt.Sprintf(
		"%s stale resources from a previous run will be removed in %s (Ctrl-C to cancel)",
		ui.WarnMark, e.grace)))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(e.grace):
	}

	summary := e.deleteAll(ctx, refs)
	return summary, nil
}

// deleteAll walks refs in order, backing up certificates before their claim
// falls. Best-effort across resources by construction.
func (e *Engine) deleteAll(ctx context.Context, refs []deploy.ResourceRef) *Summary {
	summary := &Summary{}

	for _, ref := range refs {
		if ref.Kind == "PersistentVolumeClaim" && ref.Name == naming.CertClaim {
			e.backupCertificates(ctx)
		}

		err := e.client.Delete(ctx, ref.Kind, ref.Name)
		switch {
		case err == nil:
			slog.Info("deleted", "kind", ref.Kind, "name", ref.Name)
			summary.Deleted = append(summary.Deleted, ref)
		case kube.IsNotFound(err):
			slog.Warn("already absent", "kind", ref.Kind, "name", ref.Name)
			summary.Missing = append(summary.Missing, ref)
		default:
			slog.Warn("failed to delete, continuing", "kind", ref.Kind, "name", ref.Name, "error", err)
			summary.Failed = append(summary.Failed, ref)
		}
	}
	return summary
}

// backupCertificates runs the backup protocol when configured. A failed
// backup is a data-loss risk the operator has to see, but it does not stop
// the teardown they asked for.
func (e *Engine) backupCertificates(ctx context.Context) {
	if e.backup == nil {
		return
	}
	err := e.backup(ctx)
	if err == nil {
		return
	}

	var backupErr *certbackup.BackupError
	if errors.As(err, &backupErr) {
		fmt.Println(ui.Failed(fmt.Sprintf(
			"%s certificate backup failed (%s) — deleting the claim may lose certificates permanently",
			ui.CrossMark, backupErr.Stage)))
	}
	slog.Error("certificate backup failed before claim deletion", "error", err)
}
