/*
Package scanner invokes an external vulnerability scanner and evaluates
its findings against a severity gate.

ExecScanner shells out to the configured scanner command with a bounded
timeout; exceeding the timeout is reported as ScanTimeoutError and is
never conflated with a clean result. Gate is a pure decision over a
ScanResult and a severity set, kept separate from the scan call itself.
*/
package scanner
