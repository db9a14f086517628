// Package resource defines the narrow interface the list layer uses to read
// and write a remote table, with PostgREST-style predicates, ordering and
// row ranges.
//
// Implementations live in sub-packages: postgrest talks to a Supabase or
// PostgREST endpoint over HTTP, gormstore runs the same queries through GORM.
package resource
