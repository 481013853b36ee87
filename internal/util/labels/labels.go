// Package labels centralizes the label selectors used to address the
// deployed components. Readiness gates, diagnostics, status listing, and the
// health verifier all build selectors here so they cannot drift apart.
package labels

import "fmt"

// Component values of the app label.
const (
	AppSearch     = "opensearch"
	AppDashboards = "opensearch-dashboards"
	AppCertBackup = "opensearch-cert-backup"
)

// Search selects every search node pod.
func Search() string {
	return fmt.Sprintf("app=%s", AppSearch)
}

// SearchNode selects the pods of one named search node workload.
func SearchNode(name string) string {
	return fmt.Sprintf("app=%s,node=%s", AppSearch, name)
}

// Dashboards selects the dashboards pods.
func Dashboards() string {
	return fmt.Sprintf("app=%s", AppDashboards)
}

// CertBackupHelper selects the ephemeral certificate backup helper pod.
func CertBackupHelper() string {
	return fmt.Sprintf("app=%s", AppCertBackup)
}

// Job selects the pods spawned by the named job.
func Job(name string) string {
	return fmt.Sprintf("job-name=%s", name)
}
