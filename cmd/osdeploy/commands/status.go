package commands

import (
	"github.com/spf13/cobra"

	"github.com/searchstack/osdeploy/cmd/osdeploy/handlers"
	"github.com/searchstack/osdeploy/internal/config"
)

// Status returns the status command, listing the deployed resources and
// their readiness.
func Status(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the deployed resources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := config.Load(g.overrides())
			if err != nil {
				return err
			}
			return handlers.Status(cmd.Context(), opts)
		},
	}
}
