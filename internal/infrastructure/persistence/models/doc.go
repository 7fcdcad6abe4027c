// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities carry no GORM tags
// 2. Persistence models own the table mappings and JSON-encoded columns
// 3. Each model has ToDomain and FromDomain mappers used by the repositories
//
// Structure:
// - sync_batch.go: sync batches and the active-slot unique key
// - site_result.go: per-site step results
// - inventory_cache.go: batch ERP snapshots
// - site.go: storefront sites, global settings and the storefront product cache
package models
