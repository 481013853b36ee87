// Package ptr provides helpers for taking pointers to values, which the
// Kubernetes API types need in many optional fields.
package ptr

// To returns a pointer to v.
func To[T any](v T) *T { return &v }
