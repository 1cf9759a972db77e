// Package config loads, normalizes, and validates shelfward configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SHELFWARD_NTFY_TOPIC. The Config type centralizes every knob the pipeline
// and CLI need, allowing staging/library directories, the naming pattern,
// and account credentials to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
