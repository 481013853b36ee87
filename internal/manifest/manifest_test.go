package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRenderPassthrough(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := "apiVersion: v1\nkind: Service\nmetadata:\n  name: opensearch\n"
	writeManifest(t, dir, "services.yaml", content)

	set := NewSet(dir, Data{Namespace: "opensearch", Nodes: 3})

	out, err := set.Render("services.yaml")
	require.NoError(t, err)
	assert.Equal(t, content, string(out))
}

func TestRenderExpandsNodeRange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeManifest(t, dir, "data-pvcs.yaml", strings.TrimSpace(`
{{- range $i := until .Nodes }}
---
apiVersion: v1
kind: PersistentVolumeClaim
metadata:
  name: opensearch-data-{{ add $i 1 }}
  namespace: {{ $.Namespace }}
{{- end }}
`))

	set := NewSet(dir, Data{Namespace: "opensearch", Nodes: 3})

	out, err := set.Render("data-pvcs.yaml")
	require.NoError(t, err)

	rendered := string(out)
	assert.Contains(t, rendered, "opensearch-data-1")
	assert.Contains(t, rendered, "opensearch-data-2")
	assert.Contains(t, rendered, "opensearch-data-3")
	assert.NotContains(t, rendered, "opensearch-data-4")
	assert.Contains(t, rendered, "namespace: opensearch")
}

func TestRenderMissingFile(t *testing.T) {
	t.Parallel()
	set := NewSet(t.TempDir(), Data{Namespace: "opensearch", Nodes: 1})

	_, err := set.Render("absent.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.yaml")
}

func TestRenderBrokenTemplate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeManifest(t, dir, "broken.yaml", "{{ range }}")

	set := NewSet(dir, Data{Namespace: "opensearch", Nodes: 1})

	_, err := set.Render("broken.yaml")
	require.Error(t, err)
}

func TestList(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeManifest(t, dir, "b.yaml", "kind: ConfigMap\n")
	writeManifest(t, dir, "a.yaml", "kind: Service\n")
	writeManifest(t, dir, "notes.txt", "not a manifest\n")

	set := NewSet(dir, Data{})

	names, err := set.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, names)
}

func TestMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeManifest(t, dir, "present.yaml", "kind: Service\n")

	set := NewSet(dir, Data{})

	missing := set.Missing([]string{"present.yaml", "gone.yaml", "also-gone.yaml"})
	assert.Equal(t, []string{"gone.yaml", "also-gone.yaml"}, missing)

	assert.Empty(t, set.Missing([]string{"present.yaml"}))
}
