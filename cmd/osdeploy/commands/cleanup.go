package commands

import (
	"github.com/spf13/cobra"

	"github.com/searchstack/osdeploy/cmd/osdeploy/handlers"
	"github.com/searchstack/osdeploy/internal/config"
)

// Cleanup returns the cleanup command: the minimal teardown without the
// certificate backup safeguard, meant for disposable test environments.
func Cleanup(g *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Tear down without certificate backup (disposable environments)",
		Long: `Cleanup deletes every deployed resource in reverse dependency order
without backing up the certificate volume first.

Use "osdeploy deploy --cleanup" instead when the certificates matter.

WARNING: certificates on the claim are lost permanently.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := g.overrides()
			o.Force = force

			opts, err := config.Load(o)
			if err != nil {
				return err
			}
			return handlers.Teardown(cmd.Context(), opts, false)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the interactive confirmation")

	return cmd
}
