// Package dedupe tracks recently seen keys in a bounded TTL window, used to
// refuse client retries that repeat an event id.
package dedupe
