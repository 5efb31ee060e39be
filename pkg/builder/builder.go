package builder

import (
	"context"

	"github.com/gantryci/gantry/pkg/types"
)

// BuildContext locates the build inputs and names the image to produce
type BuildContext struct {
	// Dir is the build context directory
	Dir string
	// Dockerfile is the build-instruction file, relative to Dir
	Dockerfile string
	// Repository and Tag name the produced image. The scan variant gets a
	// "-scan" tag suffix so it can never shadow the publishable image.
	Repository string
	Tag        string
}

// Builder produces a container image from a build context. cacheSeed is an
// opaque layer blob from a prior run (or nil for a fresh build); the
// returned layer blob is what the engine hands to the cache store.
type Builder interface {
	Build(ctx context.Context, bc BuildContext, variant types.BuildVariant, cacheSeed []byte) (*types.ImageArtifact, []byte, error)
}
