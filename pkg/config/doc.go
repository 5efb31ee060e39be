/*
Package config defines the orchestrator's explicit configuration surface.

Every recognized option lives on the Config struct with a named default
from DefaultConfig; Load layers a YAML file over the defaults and Validate
rejects invalid combinations with a ConfigError before any pipeline step
runs. There is no hidden environment-variable state.
*/
package config
