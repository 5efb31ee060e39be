package builder

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gantryci/gantry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantTag(t *testing.T) {
	assert.Equal(t, "v1-scan", variantTag("v1", types.VariantScan))
	assert.Equal(t, "v1", variantTag("v1", types.VariantPublish))
}

func TestValidateContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0644))

	assert.NoError(t, validateContext(BuildContext{Dir: dir, Dockerfile: "Dockerfile"}))
	assert.Error(t, validateContext(BuildContext{Dir: "/nonexistent", Dockerfile: "Dockerfile"}))
	assert.Error(t, validateContext(BuildContext{Dir: dir, Dockerfile: "Dockerfile.missing"}))
}

func TestLayerManifestRoundTrip(t *testing.T) {
	m := LayerManifest{ImageRef: "app:v1-scan", Layers: []string{"sha256:aaa", "sha256:bbb"}}

	data, err := EncodeLayerManifest(m)
	require.NoError(t, err)

	got, ok := DecodeLayerManifest(data)
	require.True(t, ok)
	assert.Equal(t, m, got)
}

func TestDecodeLayerManifestGarbage(t *testing.T) {
	_, ok := DecodeLayerManifest(nil)
	assert.False(t, ok)

	_, ok = DecodeLayerManifest([]byte("not json"))
	assert.False(t, ok)

	// decodes but names no image: unusable as a seed
	_, ok = DecodeLayerManifest([]byte(`{"layers":["sha256:aaa"]}`))
	assert.False(t, ok)
}

func TestTarDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.go"), []byte("package main\n"), 0644))

	r, err := tarDirectory(dir)
	require.NoError(t, err)

	names := map[string]bool{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names[hdr.Name] = true
	}

	assert.True(t, names["Dockerfile"])
	assert.True(t, names["src"])
	assert.True(t, names["src/main.go"])
}
