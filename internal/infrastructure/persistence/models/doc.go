// Package models holds the GORM models of the local catalog and the sync
// run history. Domain types stay free of ORM tags; repositories in the
// persistence package map between the two.
//
// - sync_run.go: one row per sync run with its counters and failure kind
// - catalog.go: products, options, option values, variants and the single
//   store settings row
package models
