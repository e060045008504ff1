// Package domain defines the core entities and interfaces for the media catalog.
//
// This package contains the canonical MediaItem model, the MediaStore
// capability interface implemented by each storage backend, and the error
// taxonomy used for retry classification and boundary translation.
// All interfaces accept context for cancellation and timeout support.
package domain
