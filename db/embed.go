// Package db embeds the PostgreSQL schema and seed data of the storefront.
package db

import _ "embed"

// Schema holds idempotent DDL for orders, loyalty profiles, promo codes and
// the catalog fallback table.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedProducts is the default catalog as a JSON array, served when no
// catalog store is configured.
//
//go:embed seed/products.json
var SeedProducts []byte
