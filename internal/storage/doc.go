// Package storage provides the concrete MediaStore backends.
//
// Two physically different stores present the same semantics: a relational
// embedded store (SQLite via GORM, single table, unique file path) and a
// document store (bolthold, one collection per media type). Results are
// normalized to the canonical domain.MediaItem before returning.
package storage
