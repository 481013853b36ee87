// Package config assembles the immutable per-invocation configuration from
// flags, environment, and an optional YAML file, in that precedence order.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFilename is looked up in the working directory when no
// --config flag is given.
const DefaultConfigFilename = "osdeploy.yaml"

const (
	DefaultNamespace      = "opensearch"
	DefaultManifestDir    = "manifests"
	DefaultBackupRoot     = "backups"
	DefaultNodes          = 3
	DefaultAdminUser      = "admin"
	DefaultAdminPassword  = "admin"
	DefaultOpenSearchPort = 9200
	DefaultDashboardsPort = 5601
)

// Environment pins down everything the process would otherwise pick up
// ambiently: kubeconfig resolution, target namespace, manifest location, and
// the backup root. It is injected into the resource client at construction.
type Environment struct {
	Kubeconfig  string
	Namespace   string
	ManifestDir string
	BackupRoot  string
}

// S3Settings enables mirroring certificate backups to an S3-compatible
// bucket. Empty bucket disables the mirror.
type S3Settings struct {
	Bucket   string
	Endpoint string
	Region   string
}

// TunnelSettings holds the local ports for the port-forward convenience.
type TunnelSettings struct {
	OpenSearchPort int
	DashboardsPort int
}

// Options is the immutable configuration for one invocation. It is built
// once in the command layer and passed to every component; nothing mutates
// it afterwards.
type Options struct {
	Cleanup       bool
	Force         bool
	SkipPreflight bool
	Nodes         int
	Verbose       bool

	AdminUser     string
	AdminPassword string

	Env      Environment
	Timeouts *Timeouts
	S3       S3Settings
	Tunnel   TunnelSettings
}

// Overrides carries flag values. Zero values mean "not set" and fall through
// to environment, file, then defaults.
type Overrides struct {
	ConfigFile  string
	Kubeconfig  string
	Namespace   string
	ManifestDir string
	BackupDir   string
	Nodes       int
	Cleanup     bool
	Force       bool
	SkipPre     bool
	Verbose     bool
}

// fileConfig mirrors the osdeploy.yaml schema.
type fileConfig struct {
	Nodes       int    `yaml:"nodes,omitempty"`
	Namespace   string `yaml:"namespace,omitempty"`
	ManifestDir string `yaml:"manifestDir,omitempty"`
	BackupDir   string `yaml:"backupDir,omitempty"`
	AdminUser   string `yaml:"adminUser,omitempty"`
	S3          struct {
		Bucket   string `yaml:"bucket,omitempty"`
		Endpoint string `yaml:"endpoint,omitempty"`
		Region   string `yaml:"region,omitempty"`
	} `yaml:"s3,omitempty"`
	Tunnel struct {
		OpenSearchPort int `yaml:"opensearchPort,omitempty"`
		DashboardsPort int `yaml:"dashboardsPort,omitempty"`
	} `yaml:"tunnel,omitempty"`
}

// Load builds Options from the given flag overrides. A .env file in the
// working directory is folded into the environment first, then the YAML
// config file (explicit path or osdeploy.yaml if present) fills anything the
// flags left unset.
func Load(o Overrides) (*Options, error) {
	loadDotenv()

	fc, err := loadFile(o.ConfigFile)
	if err != nil {
		return nil, err
	}

	opts := &Options{
		Cleanup:       o.Cleanup,
		Force:         o.Force,
		SkipPreflight: o.SkipPre,
		Verbose:       o.Verbose,
		Nodes:         firstInt(o.Nodes, fc.Nodes, DefaultNodes),
		AdminUser:     firstString(os.Getenv("OSDEPLOY_ADMIN_USER"), fc.AdminUser, DefaultAdminUser),
		AdminPassword: firstString(os.Getenv("OSDEPLOY_ADMIN_PASSWORD"), DefaultAdminPassword),
		Env: Environment{
			Kubeconfig:  firstString(o.Kubeconfig, os.Getenv("KUBECONFIG")),
			Namespace:   firstString(o.Namespace, fc.Namespace, DefaultNamespace),
			ManifestDir: firstString(o.ManifestDir, fc.ManifestDir, DefaultManifestDir),
			BackupRoot:  firstString(o.BackupDir, fc.BackupDir, DefaultBackupRoot),
		},
		Timeouts: LoadTimeouts(),
		S3: S3Settings{
			Bucket:   firstString(os.Getenv("OSDEPLOY_S3_BUCKET"), fc.S3.Bucket),
			Endpoint: firstString(os.Getenv("OSDEPLOY_S3_ENDPOINT"), fc.S3.Endpoint),
			Region:   firstString(os.Getenv("OSDEPLOY_S3_REGION"), fc.S3.Region),
		},
		Tunnel: TunnelSettings{
			OpenSearchPort: firstInt(fc.Tunnel.OpenSearchPort, DefaultOpenSearchPort),
			DashboardsPort: firstInt(fc.Tunnel.DashboardsPort, DefaultDashboardsPort),
		},
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate rejects configurations the rest of the system cannot act on.
func (o *Options) Validate() error {
	if o.Nodes < 1 {
		return fmt.Errorf("invalid node count %d: need at least 1", o.Nodes)
	}
	if o.Env.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if o.Env.ManifestDir == "" {
		return fmt.Errorf("manifest directory must not be empty")
	}
	if p := o.Tunnel.OpenSearchPort; p < 1 || p > 65535 {
		return fmt.Errorf("invalid tunnel port %d", p)
	}
	if p := o.Tunnel.DashboardsPort; p < 1 || p > 65535 {
		return fmt.Errorf("invalid tunnel port %d", p)
	}
	return nil
}

func loadDotenv() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to load .env", "error", err)
		}
	}
}

// loadFile reads the YAML config. An explicit path must exist; the default
// path is optional.
func loadFile(path string) (*fileConfig, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &fc, nil
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
