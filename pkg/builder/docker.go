package builder

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/gantryci/gantry/pkg/errdefs"
	"github.com/gantryci/gantry/pkg/log"
	"github.com/gantryci/gantry/pkg/types"
)

// DockerBuilder builds images through the Docker Engine API
type DockerBuilder struct {
	cli    *client.Client
	logger zerolog.Logger
}

// NewDockerBuilder creates a builder connected to the local Docker daemon
func NewDockerBuilder() (*DockerBuilder, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("unable to create docker client: %w", err)
	}
	return &DockerBuilder{
		cli:    cli,
		logger: log.WithComponent("builder"),
	}, nil
}

// Build produces the requested variant. The variant name doubles as the
// Dockerfile target stage, so the scan stage and the publish stage stay
// separate builds seeded from the same cache.
func (d *DockerBuilder) Build(ctx context.Context, bc BuildContext, variant types.BuildVariant, cacheSeed []byte) (*types.ImageArtifact, []byte, error) {
	if err := validateContext(bc); err != nil {
		return nil, nil, &errdefs.BuildError{Variant: variant, Err: err}
	}

	ref := bc.Repository + ":" + variantTag(bc.Tag, variant)

	var cacheFrom []string
	if seed, ok := DecodeLayerManifest(cacheSeed); ok {
		cacheFrom = []string{seed.ImageRef}
		d.logger.Debug().Str("seed", seed.ImageRef).Msg("seeding build cache")
	}

	buildCtx, err := tarDirectory(bc.Dir)
	if err != nil {
		return nil, nil, &errdefs.BuildError{Variant: variant, Err: err}
	}

	resp, err := d.cli.ImageBuild(ctx, buildCtx, dockertypes.ImageBuildOptions{
		Dockerfile: bc.Dockerfile,
		Target:     string(variant),
		Tags:       []string{ref},
		CacheFrom:  cacheFrom,
		Remove:     true,
	})
	if err != nil {
		return nil, nil, &errdefs.BuildError{Variant: variant, Err: err}
	}
	defer resp.Body.Close()

	if err := drainBuildOutput(resp.Body, d.logger); err != nil {
		return nil, nil, &errdefs.BuildError{Variant: variant, Err: err}
	}

	inspect, _, err := d.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return nil, nil, &errdefs.BuildError{Variant: variant, Err: fmt.Errorf("built image not found: %w", err)}
	}

	artifact := &types.ImageArtifact{
		Repository: bc.Repository,
		Tag:        variantTag(bc.Tag, variant),
		Digest:     inspect.ID,
		Variant:    variant,
	}

	layers, err := EncodeLayerManifest(LayerManifest{
		ImageRef: ref,
		Layers:   inspect.RootFS.Layers,
	})
	if err != nil {
		return nil, nil, &errdefs.BuildError{Variant: variant, Err: err}
	}

	d.logger.Info().
		Str("image", ref).
		Str("variant", string(variant)).
		Int("layers", len(inspect.RootFS.Layers)).
		Msg("build complete")

	return artifact, layers, nil
}

// variantTag keeps the scan build from shadowing the publishable tag
func variantTag(tag string, variant types.BuildVariant) string {
	if variant == types.VariantScan {
		return tag + "-scan"
	}
	return tag
}

// validateContext rejects a missing context or instruction file up front
func validateContext(bc BuildContext) error {
	info, err := os.Stat(bc.Dir)
	if err != nil {
		return fmt.Errorf("build context missing: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("build context %s is not a directory", bc.Dir)
	}
	if _, err := os.Stat(filepath.Join(bc.Dir, bc.Dockerfile)); err != nil {
		return fmt.Errorf("build instructions missing: %w", err)
	}
	return nil
}

// buildLine is one JSON message from the build output stream
type buildLine struct {
	Stream      string `json:"stream"`
	ErrorDetail *struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

// drainBuildOutput consumes the build stream and surfaces a backend error
// embedded in it
func drainBuildOutput(r io.Reader, logger zerolog.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line buildLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.ErrorDetail != nil {
			return fmt.Errorf("builder backend: %s", line.ErrorDetail.Message)
		}
		if line.Stream != "" {
			logger.Debug().Msg(string(bytes.TrimRight([]byte(line.Stream), "\n")))
		}
	}
	return scanner.Err()
}

// tarDirectory packs dir into the tar stream the build API expects
func tarDirectory(dir string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pack build context: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
