/*
Package registry publishes built images to a credential-gated registry.

DockerPublisher authenticates before pushing and treats the push as atomic
from the caller's view: the returned digest is what the tag resolves to,
or the push reports failure. Transient network failures are retried a
bounded number of times with exponential backoff; authentication and
validation failures are never retried.
*/
package registry
