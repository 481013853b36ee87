package handlers

import (
	"context"
	"fmt"

	"github.com/searchstack/osdeploy/internal/cleanup"
	"github.com/searchstack/osdeploy/internal/config"
	"github.com/searchstack/osdeploy/internal/deploy"
	"github.com/searchstack/osdeploy/internal/ui"
)

// Teardown handles both teardown variants: withBackup runs the certificate
// backup-before-destroy protocol, the minimal variant (plain cleanup
// command) skips it for disposable environments.
func Teardown(ctx context.Context, opts *config.Options, withBackup bool) error {
	fmt.Println(ui.Title(fmt.Sprintf("Tearing down OpenSearch in namespace %s", opts.Env.Namespace)))
	if !withBackup {
		fmt.Println(ui.Warning(ui.WarnMark + " certificate backup disabled — certificates will be lost"))
	}

	client, err := newKubeClient(opts)
	if err != nil {
		return err
	}

	engineOpts := []cleanup.Option{cleanup.WithGrace(opts.Timeouts.GracePeriod)}
	if withBackup {
		engineOpts = append(engineOpts, cleanup.WithBackup(newBackupFunc(ctx, client, opts)))
	}

	plan := deploy.BuildPlan(opts)
	engine := cleanup.New(client, plan.ReverseResources(), engineOpts...)

	summary, err := engine.Run(ctx, opts.Force)
	if err != nil {
		return err
	}

	fmt.Println(ui.Ready(fmt.Sprintf("%s teardown finished: %d deleted, %d already absent, %d failed",
		ui.CheckMark, len(summary.Deleted), len(summary.Missing), len(summary.Failed))))
	if len(summary.Failed) > 0 {
		for _, ref := range summary.Failed {
			fmt.Println(ui.Warning(fmt.Sprintf("%s %s/%s could not be deleted", ui.WarnMark, ref.Kind, ref.Name)))
		}
		fmt.Println(ui.Dim("  re-run the cleanup to converge the remaining resources"))
	}
	return nil
}
