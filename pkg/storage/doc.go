/*
Package storage persists pipeline run records on BoltDB.

Every run, including partial results of failed or aborted runs, is written
when it reaches a terminal status so operators can inspect which steps
completed and which error kind ended the run.
*/
package storage
