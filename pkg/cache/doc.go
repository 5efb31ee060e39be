/*
Package cache implements the keyed build-layer cache store on BoltDB.

Entries are addressed by the structured cache key rendered as
"platform/workflow/revision". Restore tries the exact key first and then
scans caller-supplied restore-key prefixes in priority order, returning the
first live match. Save always writes under the current run's exact key,
never under the key a restore matched, which keeps sibling generations from
poisoning the base entry they restore from.

Entries older than the configured retention window are treated as misses
and reclaimed by Prune. Bolt's single-writer transactions give atomic
publish: concurrent same-key saves are last-write-wins, but a reader never
sees a torn payload.
*/
package cache
