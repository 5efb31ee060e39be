/*
Package builder produces container images from a build context.

The Builder interface takes a build context, a variant (scan or publish),
and an opaque cache seed blob; it returns the image artifact plus the layer
blob the engine hands to the cache store. The variant selects the
Dockerfile target stage, so the scanned image and the published image are
always sibling builds of the same context, never the same artifact.

DockerBuilder is the production implementation over the Docker Engine API.
*/
package builder
