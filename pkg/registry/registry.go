package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/docker/docker/api/types/image"
	registrytypes "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/gantryci/gantry/pkg/errdefs"
	"github.com/gantryci/gantry/pkg/log"
	"github.com/gantryci/gantry/pkg/types"
)

// Credentials is the resolved credential material for one registry
type Credentials struct {
	Username      string
	Password      string
	ServerAddress string
}

// Publisher uploads a tagged image to a remote registry. From the caller's
// perspective the push is atomic: either the returned digest is live under
// the tag or an error is reported.
type Publisher interface {
	Push(ctx context.Context, artifact *types.ImageArtifact, creds Credentials) (digest string, err error)
}

const (
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
)

// DockerPublisher pushes through the Docker Engine API
type DockerPublisher struct {
	cli      *client.Client
	attempts int
	backoff  time.Duration
	logger   zerolog.Logger
}

// NewDockerPublisher creates a publisher connected to the local Docker daemon
func NewDockerPublisher() (*DockerPublisher, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("unable to create docker client: %w", err)
	}
	return &DockerPublisher{
		cli:      cli,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		logger:   log.WithComponent("publisher"),
	}, nil
}

// Push authenticates and uploads the artifact. Transient network failures
// get a bounded retry with backoff; authentication and validation failures
// fail immediately.
func (p *DockerPublisher) Push(ctx context.Context, artifact *types.ImageArtifact, creds Credentials) (string, error) {
	ref := artifact.Ref()

	auth := registrytypes.AuthConfig{
		Username:      creds.Username,
		Password:      creds.Password,
		ServerAddress: creds.ServerAddress,
	}

	if _, err := p.cli.RegistryLogin(ctx, auth); err != nil {
		return "", &errdefs.PublishError{Ref: ref, Attempts: 1, Err: fmt.Errorf("authentication failed: %w", err)}
	}

	encoded, err := registrytypes.EncodeAuthConfig(auth)
	if err != nil {
		return "", &errdefs.PublishError{Ref: ref, Attempts: 1, Err: err}
	}

	var digest string
	attempts, err := withRetry(ctx, p.attempts, p.backoff, func() error {
		rc, err := p.cli.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: encoded})
		if err != nil {
			return err
		}
		defer rc.Close()

		digest, err = readPushDigest(rc)
		return err
	})
	if err != nil {
		return "", &errdefs.PublishError{Ref: ref, Attempts: attempts, Err: err}
	}

	p.logger.Info().Str("image", ref).Str("digest", digest).Int("attempts", attempts).Msg("push complete")
	return digest, nil
}

// pushLine is one JSON message from the push output stream
type pushLine struct {
	Aux *struct {
		Tag    string `json:"tag"`
		Digest string `json:"digest"`
	} `json:"aux"`
	ErrorDetail *struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

// readPushDigest consumes the push stream and returns the resulting digest
func readPushDigest(r io.Reader) (string, error) {
	var digest string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line pushLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.ErrorDetail != nil {
			return "", fmt.Errorf("registry: %s", line.ErrorDetail.Message)
		}
		if line.Aux != nil && line.Aux.Digest != "" {
			digest = line.Aux.Digest
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if digest == "" {
		return "", fmt.Errorf("push completed without a digest")
	}
	return digest, nil
}

// withRetry runs fn up to attempts times, backing off between tries, but
// only when the failure looks transient. Returns the number of attempts
// actually made.
func withRetry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) (int, error) {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return attempt, nil
		}
		if !isTransient(err) || attempt == attempts {
			return attempt, err
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
	}
	return attempts, err
}

// isTransient classifies network-class failures worth retrying
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	msg := err.Error()
	for _, hint := range []string{"connection refused", "connection reset", "timeout", "temporarily unavailable", "TLS handshake timeout"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
