// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/searchstack/osdeploy/cmd/osdeploy/handlers"
	"github.com/searchstack/osdeploy/internal/config"
	"github.com/searchstack/osdeploy/internal/ui"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configFile  string
	kubeconfig  string
	namespace   string
	manifestDir string
	backupDir   string
	verbose     bool
}

// overrides folds the global flags into a config override set.
func (g *globalFlags) overrides() config.Overrides {
	return config.Overrides{
		ConfigFile:  g.configFile,
		Kubeconfig:  g.kubeconfig,
		Namespace:   g.namespace,
		ManifestDir: g.manifestDir,
		BackupDir:   g.backupDir,
		Verbose:     g.verbose,
	}
}

// Root returns the root command for the osdeploy CLI. Running it without a
// subcommand deploys with default settings.
func Root() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "osdeploy",
		Short:         "Deploy and manage an OpenSearch cluster on Kubernetes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			ui.Init(g.verbose)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := config.Load(g.overrides())
			if err != nil {
				return err
			}
			return handlers.Deploy(cmd.Context(), opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "Path to an osdeploy.yaml config file")
	pf.StringVar(&g.kubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	pf.StringVar(&g.namespace, "namespace", "", "Target namespace (default \"opensearch\")")
	pf.StringVar(&g.manifestDir, "manifest-dir", "", "Directory containing the deployment manifests")
	pf.StringVar(&g.backupDir, "backup-dir", "", "Directory for certificate backups")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(Deploy(g))
	cmd.AddCommand(Cleanup(g))
	cmd.AddCommand(Status(g))
	cmd.AddCommand(Tunnel(g))
	cmd.AddCommand(Version())

	return cmd
}
