package naming

import (
	"fmt"
	"time"
)

// Fixed resource names. Manifests, readiness selectors, and teardown all
// address resources through these, so the deletion path can never drift from
// the creation path.
const (
	CertClaim        = "opensearch-certs"
	CertJob          = "opensearch-cert-generator"
	Config           = "opensearch-config"
	SecurityConfig   = "opensearch-security-config"
	Service          = "opensearch"
	DiscoveryService = "opensearch-discovery"
	Dashboards       = "opensearch-dashboards"
)

// Label keys shared by all workloads.
const (
	LabelApp  = "app"
	LabelNode = "node"
)

// Node returns the name of the i-th cluster node workload, 1-based.
func Node(i int) string {
	return fmt.Sprintf("opensearch-node%d", i)
}

// DataClaim returns the name of the i-th data volume claim, 1-based.
func DataClaim(i int) string {
	return fmt.Sprintf("opensearch-data-%d", i)
}

// BackupHelper returns the helper pod name for a certificate backup run.
func BackupHelper(suffix string) string {
	return fmt.Sprintf("opensearch-cert-backup-%s", suffix)
}

// BackupDir returns the timestamped backup directory name for ts.
func BackupDir(ts time.Time) string {
	return fmt.Sprintf("opensearch-certs-backup-%s", ts.Format("20060102_150405"))
}
