/*
Package events distributes pipeline lifecycle events inside the process.

The engine publishes run and step events to a Broker; subscribers (the CLI
progress renderer, tests) receive them on buffered channels. Slow
subscribers are skipped rather than blocking the pipeline.
*/
package events
