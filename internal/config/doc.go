// Package config resolves the application configuration snapshot.
//
// Settings merge from built-in defaults, optional JSON override files and
// MEDIA_PORTAL_* environment variables, in increasing precedence. The snapshot
// is resolved once at startup and treated as read-only afterwards.
package config
