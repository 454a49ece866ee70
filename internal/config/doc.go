// Package config loads, normalizes, and validates the TOML configuration
// consumed by the daemon and CLI.
//
// Load resolves the config path (explicit flag, ~/.config/montage/config.toml,
// or ./montage.toml), decodes it over repository defaults, expands home-relative
// paths, and validates tuning values for the sync, quality, and stitching
// engines. Missing files are not an error; defaults apply.
package config
