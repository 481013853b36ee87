// Package handlers implements command execution. Commands parse flags and
// delegate here; collaborators are created through factory variables so
// tests can swap in fakes.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/searchstack/osdeploy/internal/certbackup"
	"github.com/searchstack/osdeploy/internal/cleanup"
	"github.com/searchstack/osdeploy/internal/config"
	"github.com/searchstack/osdeploy/internal/deploy"
	"github.com/searchstack/osdeploy/internal/health"
	"github.com/searchstack/osdeploy/internal/kube"
	"github.com/searchstack/osdeploy/internal/manifest"
	"github.com/searchstack/osdeploy/internal/preflight"
	"github.com/searchstack/osdeploy/internal/ui"
)

// clusterVerifier matches health.Verifier for test substitution.
type clusterVerifier interface {
	Verify(ctx context.Context) (health.Status, error)
}

// Factory function variables — replaced in tests.
var (
	newKubeClient = func(opts *config.Options) (kube.Interface, error) {
		return kube.NewClient(opts.Env, kube.WithPollInterval(opts.Timeouts.PollInterval))
	}

	newVerifier = func(client kube.Interface, opts *config.Options) clusterVerifier {
		return health.New(client, opts)
	}
)

// Deploy handles the deploy command: preflight, stale-state sweep, the full
// plan with readiness gates, then health verification. Any required-step
// failure aborts with its diagnostics; nothing is rolled back.
func Deploy(ctx context.Context, opts *config.Options) error {
	fmt.Println(ui.Title(fmt.Sprintf("Deploying OpenSearch (%d nodes) to namespace %s",
		opts.Nodes, opts.Env.Namespace)))

	client, err := newKubeClient(opts)
	if err != nil {
		return err
	}

	manifests := manifest.NewSet(opts.Env.ManifestDir, manifest.Data{
		Namespace: opts.Env.Namespace,
		Nodes:     opts.Nodes,
	})
	plan := deploy.BuildPlan(opts)

	if opts.SkipPreflight {
		slog.Warn("preflight validation skipped")
	} else {
		fmt.Println(ui.Section("Preflight"))
		result := preflight.New(client, manifests, plan.ManifestNames()).Run(ctx)
		for _, w := range result.Warnings {
			fmt.Println(ui.Warning(ui.WarnMark + " " + w))
		}
		if err := result.Err(); err != nil {
			return err
		}
		fmt.Println(ui.Ready(ui.CheckMark + " preflight passed"))
	}

	// Leftovers from an earlier incomplete run are backed up and removed
	// before the fresh deployment.
	engine := cleanup.New(client, plan.ReverseResources(),
		cleanup.WithBackup(newBackupFunc(ctx, client, opts)),
		cleanup.WithGrace(opts.Timeouts.GracePeriod))
	if _, err := engine.SweepStale(ctx); err != nil {
		return fmt.Errorf("stale-state sweep failed: %w", err)
	}

	fmt.Println(ui.Section("Deployment"))
	if _, err := deploy.NewOrchestrator(client, manifests).Run(ctx, plan); err != nil {
		reportStepFailure(opts, err)
		return err
	}

	fmt.Println(ui.Section("Verification"))
	status, err := newVerifier(client, opts).Verify(ctx)
	if err != nil {
		fmt.Println(ui.Failed(fmt.Sprintf(
			"%s cluster health is %s — resources left in place for inspection", ui.CrossMark, status)))
		fmt.Println(ui.Dim(fmt.Sprintf(
			"  inspect with: kubectl -n %s get pods && kubectl -n %s logs -l app=opensearch",
			opts.Env.Namespace, opts.Env.Namespace)))
		return err
	}

	fmt.Println(ui.Ready(ui.CheckMark + " cluster is green"))
	fmt.Println(ui.Dim(fmt.Sprintf(
		"  access it with: osdeploy tunnel start (then https://localhost:%d)",
		opts.Tunnel.OpenSearchPort)))
	return nil
}

// newBackupFunc wires the certificate lifecycle manager, with the S3 mirror
// when configured. S3 setup trouble downgrades to local-only backups.
func newBackupFunc(ctx context.Context, client kube.Interface, opts *config.Options) cleanup.BackupFunc {
	var mgrOpts []certbackup.Option
	if opts.S3.Bucket != "" {
		uploader, err := certbackup.NewUploader(ctx, opts.S3, opts.Timeouts)
		if err != nil {
			slog.Warn("S3 mirror unavailable, keeping backups local only", "error", err)
		} else {
			mgrOpts = append(mgrOpts, certbackup.WithUploader(uploader))
		}
	}
	mgr := certbackup.New(client, opts.Env.BackupRoot, opts.Timeouts, mgrOpts...)
	return func(ctx context.Context) error {
		backup, err := mgr.Backup(ctx)
		if backup != nil {
			fmt.Println(ui.Ready(fmt.Sprintf("%s certificates backed up to %s (%d files)",
				ui.CheckMark, backup.Dir, backup.Files)))
		}
		return err
	}
}

// reportStepFailure prints the aborting step with its diagnostics and a
// pointer to follow-up commands.
func reportStepFailure(opts *config.Options, err error) {
	var stepErr *deploy.StepError
	if !errors.As(err, &stepErr) {
		return
	}
	fmt.Println(ui.Failed(fmt.Sprintf("%s step %s failed: %v", ui.CrossMark, stepErr.Step, stepErr.Err)))
	if diag := stepErr.Diagnostics(); diag != "" {
		fmt.Println(ui.Dim(diag))
	}
	fmt.Println(ui.Dim(fmt.Sprintf(
		"  inspect with: kubectl -n %s get pods && kubectl -n %s get events --sort-by=.lastTimestamp",
		opts.Env.Namespace, opts.Env.Namespace)))
}
