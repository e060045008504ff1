// Package catalog implements the unified media storage interface.
//
// The service dispatches to the active backend through domain.MediaStore,
// wraps every operation in the configured retry or guarded-call policy, and
// normalizes results to the canonical MediaItem. A legacy shim exposes the
// same operations under their older document-centric names.
package catalog
