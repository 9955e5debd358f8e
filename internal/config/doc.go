// Package config loads, normalizes, and validates docbridge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DOCBRIDGE_INGEST_URL. The Config type centralizes every knob the daemon and
// CLI need, so ledger location, scan roots, and external service credentials
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
