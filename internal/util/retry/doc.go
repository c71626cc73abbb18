// Package retry provides exponential backoff retry logic for transient
// failures.
//
// [WithExponentialBackoff] retries an operation with configurable max
// attempts, initial delay, and maximum delay. It backs the SSH probe's
// dial loop and other calls that fail transiently while a resource is
// still converging.
package retry
