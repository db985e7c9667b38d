// Package config loads, normalizes, and validates reelgate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// NTFY_TOPIC. Storage backend credentials never live in the TOML file: they are
// environment-style key groups read from the process environment and an
// optional .env file, then parsed into typed profile structs.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
