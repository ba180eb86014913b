// Package config loads, normalizes, and validates pvzvoice configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for Redis and
// cloud credentials. Namespace names, the replication factor, and legacy
// layouts live here as data so the store never hard-codes where it writes.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
