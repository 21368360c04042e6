package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleManifest = `module: billing
permissions:
  - name: invoices.view
    display_name: View Invoices
  - name: invoices.approve
    guard: staff
    order: 2
    metadata:
      tier: premium
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)
	require.Equal(t, "billing", m.Module)
	require.Len(t, m.Permissions, 2)
	require.Equal(t, "invoices.view", m.Permissions[0].Name)
	require.Equal(t, "View Invoices", m.Permissions[0].DisplayName)
	require.Equal(t, 2, m.Permissions[1].Order)
	require.Equal(t, "premium", m.Permissions[1].Metadata["tier"])
}

func TestParseRejectsMissingModule(t *testing.T) {
	_, err := Parse([]byte("permissions:\n  - name: a.b\n"))
	require.Error(t, err)
}

func TestParseRejectsUnnamedDescriptor(t *testing.T) {
	_, err := Parse([]byte("module: billing\npermissions:\n  - display_name: Orphan\n"))
	require.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("module: [unclosed"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "billing", m.Module)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
