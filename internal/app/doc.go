// Package app wires the resolved configuration, the active storage backend,
// the catalog service and the HTTP boundary together, and owns the process
// lifecycle.
package app
