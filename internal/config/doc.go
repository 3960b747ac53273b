// Package config loads, normalizes, and validates shelver configuration data.
//
// It supplies repository defaults from struct tags, expands user paths
// (including tilde shortcuts), reads TOML files, and honours environment
// fallbacks such as OPENROUTER_API_KEY. The Config type centralizes every knob
// the CLI and rename pipeline need so target directories, name sources, and
// external tool locations are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, lower-cased enumerations, and clear validation errors.
package config
