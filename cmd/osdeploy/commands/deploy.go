package commands

import (
	"github.com/spf13/cobra"

	"github.com/searchstack/osdeploy/cmd/osdeploy/handlers"
	"github.com/searchstack/osdeploy/internal/config"
)

// Deploy returns the deploy command.
//
// Deploy runs preflight checks, sweeps stale resources from a previous
// incomplete run (backing up certificates first), applies the full plan in
// dependency order with readiness gates, and verifies cluster health.
// With --cleanup it instead tears the deployment down with the certificate
// backup safeguard.
func Deploy(g *globalFlags) *cobra.Command {
	var (
		cleanupMode   bool
		force         bool
		nodes         int
		skipPreflight bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the OpenSearch cluster (or tear it down with --cleanup)",
		Long: `Deploy provisions the full OpenSearch stack in dependency order:

  certificate storage -> certificate generation -> configuration ->
  services -> data volumes -> search nodes -> dashboards -> verification

Each gated phase waits for observable readiness before the next starts.
Stale resources from a previous incomplete run are detected, their
certificates backed up, and then removed before the fresh deployment.

Example:
  osdeploy deploy --nodes 3
  osdeploy deploy --cleanup --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := g.overrides()
			o.Nodes = nodes
			o.Cleanup = cleanupMode
			o.Force = force
			o.SkipPre = skipPreflight

			opts, err := config.Load(o)
			if err != nil {
				return err
			}
			if opts.Cleanup {
				return handlers.Teardown(cmd.Context(), opts, true)
			}
			return handlers.Deploy(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&cleanupMode, "cleanup", false, "Tear down instead of deploying (with certificate backup)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the interactive teardown confirmation")
	cmd.Flags().IntVar(&nodes, "nodes", 0, "Number of search nodes (default 3)")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip the preflight validation")

	return cmd
}
