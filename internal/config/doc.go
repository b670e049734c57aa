// Package config loads, normalizes, and validates Ferry configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FERRY_NTFY_TOPIC. The Config type centralizes every knob the daemon and CLI
// need: roots, filter criteria, retry and verification policy, schedule,
// notification and VPN settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
