package commands

import (
	"github.com/spf13/cobra"

	"github.com/searchstack/osdeploy/cmd/osdeploy/handlers"
	"github.com/searchstack/osdeploy/internal/config"
)

// Tunnel returns the tunnel command group. Tunnels are long-running local
// port-forwards managed independently of the deployment lifecycle.
func Tunnel(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tunnel",
		Short: "Manage local port-forwards to OpenSearch and Dashboards",
	}

	load := func() (*config.Options, error) {
		return config.Load(g.overrides())
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start port-forwards (OpenSearch 9200, Dashboards 5601)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := load()
			if err != nil {
				return err
			}
			return handlers.TunnelStart(cmd.Context(), opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop running port-forwards",
		RunE: func(_ *cobra.Command, _ []string) error {
			opts, err := load()
			if err != nil {
				return err
			}
			return handlers.TunnelStop(opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show port-forward liveness",
		RunE: func(_ *cobra.Command, _ []string) error {
			opts, err := load()
			if err != nil {
				return err
			}
			return handlers.TunnelStatus(opts)
		},
	})

	return cmd
}
