/*
Package health provides the HTTP probe the cluster deployer uses as its
smoke test: one request against the workload's exposed node port,
comparing the response status against the configured expectation.
*/
package health
