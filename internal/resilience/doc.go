// Package resilience wraps storage operations in a uniform failure-handling
// policy: guarded calls that degrade to a fallback, retry with backoff for an
// allow-list of error kinds, and exception-safe scoped cleanup.
package resilience
