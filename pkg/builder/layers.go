package builder

import (
	"encoding/json"
	"fmt"
)

// LayerManifest is the payload stored in the cache: the image the layers
// came from plus its layer digests. It is opaque to the engine and the
// cache store.
type LayerManifest struct {
	ImageRef string   `json:"image_ref"`
	Layers   []string `json:"layers"`
}

// EncodeLayerManifest serializes a manifest for cache storage
func EncodeLayerManifest(m LayerManifest) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode layer manifest: %w", err)
	}
	return data, nil
}

// DecodeLayerManifest parses a cache payload. A payload that does not
// decode is treated as no seed rather than an error; the cache is an
// optimization, never a correctness input.
func DecodeLayerManifest(data []byte) (LayerManifest, bool) {
	if len(data) == 0 {
		return LayerManifest{}, false
	}
	var m LayerManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return LayerManifest{}, false
	}
	if m.ImageRef == "" {
		return LayerManifest{}, false
	}
	return m, true
}
