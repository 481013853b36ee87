package handlers

import (
	"context"
	"fmt"

	"github.com/searchstack/osdeploy/internal/config"
	"github.com/searchstack/osdeploy/internal/tunnel"
	"github.com/searchstack/osdeploy/internal/ui"
)

// newTunnel is a factory variable so tests can redirect tunnel state.
var newTunnel = func(opts *config.Options) (*tunnel.Tunnel, error) {
	return tunnel.New(opts)
}

// TunnelStart handles tunnel start.
func TunnelStart(ctx context.Context, opts *config.Options) error {
	t, err := newTunnel(opts)
	if err != nil {
		return err
	}
	if err := t.Start(ctx); err != nil {
		return err
	}
	fmt.Println(ui.Ready(fmt.Sprintf("%s OpenSearch at https://localhost:%d, Dashboards at http://localhost:%d",
		ui.CheckMark, opts.Tunnel.OpenSearchPort, opts.Tunnel.DashboardsPort)))
	return nil
}

// TunnelStop handles tunnel stop.
func TunnelStop(opts *config.Options) error {
	t, err := newTunnel(opts)
	if err != nil {
		return err
	}
	return t.Stop()
}

// TunnelStatus handles tunnel status.
func TunnelStatus(opts *config.Options) error {
	t, err := newTunnel(opts)
	if err != nil {
		return err
	}
	for _, s := range t.Statuses() {
		if s.Running {
			fmt.Printf("%s %s: forwarding localhost:%d (pid %d)\n",
				ui.Ready(ui.CheckMark), s.Endpoint.Name, s.Endpoint.LocalPort, s.PID)
		} else {
			fmt.Printf("%s %s: not running\n", ui.Dim("[--]"), s.Endpoint.Name)
		}
	}
	return nil
}
