// Package config loads, validates, and normalizes optic's TOML configuration.
//
// Configuration resolves from an explicit --config path, then $OPTIC_CONFIG,
// then ~/.config/optic/config.toml, then ./optic.toml, falling back to built-in
// defaults when no file exists. All paths support ~ expansion and are made
// absolute during normalization.
package config
