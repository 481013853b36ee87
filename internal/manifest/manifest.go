// Package manifest resolves and renders the YAML manifests a deployment
// references. Manifests are templates: plain YAML passes through untouched,
// while files using template actions are expanded against the cluster shape
// (namespace, node count) before being applied.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/bmatcuk/doublestar/v4"
)

// Data is the template input for manifest rendering.
type Data struct {
	Namespace string
	Nodes     int
}

// Set is a directory of manifests bound to one cluster shape.
type Set struct {
	dir  string
	data Data
}

// NewSet binds dir to the given cluster shape.
func NewSet(dir string, data Data) *Set {
	return &Set{dir: dir, data: data}
}

// Dir returns the manifest directory.
func (s *Set) Dir() string { return s.dir }

// List returns the sorted names of all YAML files under the directory,
// including nested ones.
func (s *Set) List() ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(s.dir), "**/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob manifests in %s: %w", s.dir, err)
	}
	slices.Sort(matches)
	return matches, nil
}

// Missing reports which of the required manifest names are absent on disk.
func (s *Set) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if _, err := os.Stat(filepath.Join(s.dir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// Render reads the named manifest and expands it against the cluster shape.
func (s *Set) Render(name string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", name, err)
	}

	tmpl, err := template.New(name).Funcs(sprig.FuncMap()).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse manifest template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, s.data); err != nil {
		return nil, fmt.Errorf("render manifest %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
