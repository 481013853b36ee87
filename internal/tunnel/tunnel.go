// Package tunnel manages the local port-forward convenience processes. The
// tunnel is an operational sidecar with its own start/stop/status lifecycle
// and shares no state with the orchestrator; child pids are tracked in
// files under the user cache directory so a later invocation can find them.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/searchstack/osdeploy/internal/config"
	"github.com/searchstack/osdeploy/internal/util/naming"
	"github.com/searchstack/osdeploy/internal/util/netutil"
)

// Endpoint is one forwarded service.
type Endpoint struct {
	Name       string
	Service    string
	LocalPort  int
	RemotePort int
}

// Status reports one endpoint's tunnel liveness.
type Status struct {
	Endpoint Endpoint
	Running  bool
	PID      int
}

// Tunnel manages the port-forward children for the deployed services.
type Tunnel struct {
	namespace  string
	kubeconfig string
	endpoints  []Endpoint
	stateDir   string
}

// New builds a tunnel for the configured ports. State lives under the user
// cache dir unless overridden with WithStateDir.
func New(opts *config.Options, tunnelOpts ...Option) (*Tunnel, error) {
	t := &Tunnel{
		namespace:  opts.Env.Namespace,
		kubeconfig: opts.Env.Kubeconfig,
		endpoints: []Endpoint{
			{Name: "opensearch", Service: naming.Service, LocalPort: opts.Tunnel.OpenSearchPort, RemotePort: 9200},
			{Name: "dashboards", Service: naming.Dashboards, LocalPort: opts.Tunnel.DashboardsPort, RemotePort: 5601},
		},
	}
	for _, opt := range tunnelOpts {
		opt(t)
	}
	if t.stateDir == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine cache dir for tunnel state: %w", err)
		}
		t.stateDir = filepath.Join(cache, "osdeploy")
	}
	if err := os.MkdirAll(t.stateDir, 0o750); err != nil {
		return nil, fmt.Errorf("cannot create tunnel state dir: %w", err)
	}
	return t, nil
}

// Option adjusts tunnel construction.
type Option func(*Tunnel)

// WithStateDir overrides where pid files are kept.
func WithStateDir(dir string) Option {
	return func(t *Tunnel) { t.stateDir = dir }
}

// Start spawns a kubectl port-forward child per endpoint that is not
// already running. Each child is detached and tracked by pid file.
func (t *Tunnel) Start(ctx context.Context) error {
	for _, ep := range t.endpoints {
		if pid, ok := t.livePID(ep); ok {
			slog.Info("tunnel already running", "endpoint", ep.Name, "pid", pid)
			continue
		}
		if !netutil.PortFree(ep.LocalPort) {
			return fmt.Errorf("local port %d for %s is already in use", ep.LocalPort, ep.Name)
		}

		args := []string{
			"port-forward",
			"--namespace", t.namespace,
			"service/" + ep.Service,
			fmt.Sprintf("%d:%d", ep.LocalPort, ep.RemotePort),
		}
		if t.kubeconfig != "" {
			args = append([]string{"--kubeconfig", t.kubeconfig}, args...)
		}

		cmd := exec.CommandContext(context.WithoutCancel(ctx), "kubectl", args...)
		cmd.Stdout = nil
		cmd.Stderr = nil
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start port-forward for %s: %w", ep.Name, err)
		}

		if err := t.writePID(ep, cmd.Process.Pid); err != nil {
			_ = cmd.Process.Kill()
			return err
		}
		// Detach: the tunnel outlives this invocation.
		if err := cmd.Process.Release(); err != nil {
			slog.Warn("failed to detach tunnel process", "endpoint", ep.Name, "error", err)
		}
		slog.Info("tunnel started", "endpoint", ep.Name,
			"local", ep.LocalPort, "remote", ep.RemotePort, "pid", cmd.Process.Pid)
	}
	return nil
}

// Stop terminates every tracked child and removes its pid file. Children
// that already exited are cleaned up silently.
func (t *Tunnel) Stop() error {
	var errs []error
	for _, ep := range t.endpoints {
		pid, err := t.readPID(ep)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		if alive(pid) {
			if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop tunnel %s (pid %d): %w", ep.Name, pid, err))
				continue
			}
			slog.Info("tunnel stopped", "endpoint", ep.Name, "pid", pid)
		}
		if err := os.Remove(t.pidPath(ep)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Statuses reports liveness per endpoint. Stale pid files (dead process)
// report as not running.
func (t *Tunnel) Statuses() []Status {
	statuses := make([]Status, 0, len(t.endpoints))
	for _, ep := range t.endpoints {
		pid, ok := t.livePID(ep)
		statuses = append(statuses, Status{Endpoint: ep, Running: ok, PID: pid})
	}
	return statuses
}

func (t *Tunnel) pidPath(ep Endpoint) string {
	return filepath.Join(t.stateDir, "tunnel-"+ep.Name+".pid")
}

func (t *Tunnel) writePID(ep Endpoint, pid int) error {
	if err := os.WriteFile(t.pidPath(ep), []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return fmt.Errorf("failed to record tunnel pid: %w", err)
	}
	return nil
}

func (t *Tunnel) readPID(ep Endpoint) (int, error) {
	raw, err := os.ReadFile(t.pidPath(ep))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("corrupt pid file %s: %w", t.pidPath(ep), err)
	}
	return pid, nil
}

// livePID returns the endpoint's recorded pid if the process is alive.
func (t *Tunnel) livePID(ep Endpoint) (int, bool) {
	pid, err := t.readPID(ep)
	if err != nil {
		return 0, false
	}
	if !alive(pid) {
		return pid, false
	}
	return pid, true
}

// alive probes the process with signal 0.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
