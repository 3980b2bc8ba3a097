package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointCollection = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"impact":"High"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"impact":"Low"}}
]}`

func setupWorkspace(t *testing.T) (dir string, cfgPath string) {
	t.Helper()
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, pointCollection)
	}))
	t.Cleanup(srv.Close)

	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "hazard-map.yaml")
	content := fmt.Sprintf(`
map:
  title: CLI Test
datasets:
  - name: Evacuation Zones
    url: %[1]s/zones
    geometry: polygon
  - name: HSZ Impact Points
    url: %[1]s/impacts
    geometry: point
    displace: true
    info:
      title: Impacts
      html: "<b>modelled</b>"
  - name: Tsunami Inundation
    url: %[1]s/missing
    geometry: polygon
order: [Evacuation Zones, Tsunami Inundation, HSZ Impact Points]
hidden: [HSZ Impact Points]
resolver:
  min_separation: 0.5
  seed: 1
fetch:
  retries: 0
output:
  html: %[2]s
  payload: %[3]s
`, srv.URL, filepath.Join(dir, "map.html"), filepath.Join(dir, "layers.json"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return dir, cfgPath
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	configFile, outputFile, payloadFile, serveAddr = "", "", "", ""
	verbose, interval, watchMode, openPage = 0, 0, false, false

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestGenerateCommand(t *testing.T) {
	dir, cfgPath := setupWorkspace(t)

	stdout, stderr, err := execute(t, "--config", cfgPath)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Hazard map with 2 layers saved to")
	assert.Contains(t, stderr, `layer "Tsunami Inundation" unavailable`)
	assert.FileExists(t, filepath.Join(dir, "map.html"))
	assert.FileExists(t, filepath.Join(dir, "layers.json"))
}

func TestGenerateOutputOverride(t *testing.T) {
	dir, cfgPath := setupWorkspace(t)
	out := filepath.Join(dir, "custom.html")

	_, _, err := execute(t, "--config", cfgPath, "--output", out)
	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestListCommand(t *testing.T) {
	_, cfgPath := setupWorkspace(t)

	stdout, _, err := execute(t, "list", "--config", cfgPath)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Layer stack (2 layers, top first)")
	assert.Contains(t, stdout, "HSZ Impact Points: hidden, 2 features")
	assert.Contains(t, stdout, "Evacuation Zones: visible, 2 features")
	assert.Contains(t, stdout, "HSZ Impact Points: 2 points separated")
	assert.Contains(t, stdout, `[LAYER_MISSING] layer "Tsunami Inundation" not loaded`)
	assert.Less(t, bytes.Index([]byte(stdout), []byte("HSZ Impact Points: hidden")),
		bytes.Index([]byte(stdout), []byte("Evacuation Zones: visible")))
}

func TestConfigCommand(t *testing.T) {
	_, cfgPath := setupWorkspace(t)

	stdout, _, err := execute(t, "config", "--config", cfgPath)
	require.NoError(t, err)

	assert.Contains(t, stdout, "title: CLI Test")
	assert.Contains(t, stdout, "min_separation: 0.5")
	assert.Contains(t, stdout, "timeout: 20s")
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hidden: [HSZ Impact points]\n"), 0644))

	_, stderr, err := execute(t, "list", "--config", path)
	require.Error(t, err)
	assert.Contains(t, stderr, "CONFIG_INVALID")
}
