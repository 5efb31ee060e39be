/*
Package types defines the shared domain model for the Gantry pipeline
orchestrator: workflow and run identities, step results, structured cache
keys, scan findings, image artifacts, and the deployment state machine
vocabulary.

Types here carry no behavior beyond small pure helpers (key rendering,
severity ranking) so every other package can depend on them without cycles.
The engine owns PipelineRun; cache entries, images, and clusters are owned
by their backing services and appear here only as references and result
metadata.
*/
package types
