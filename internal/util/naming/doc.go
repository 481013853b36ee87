// Package naming is the single source of truth for cluster resource names.
//
// Node workloads and their volume claims are numbered 1-based
// (opensearch-node1, opensearch-data-1); everything else carries a fixed
// name. Certificate backup locations derive from a wall-clock timestamp so
// repeated backups never collide.
package naming
