// Package config handles loading and parsing the stride configuration file.
//
// # Overview
//
// Stride reads a small TOML file to discover the walk:ai API base URL and
// the jobs polling cadence. Missing files are not an error; hardcoded
// defaults let the console work out of the box against a local backend.
//
// # Configuration Discovery
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/stride/config.toml
//  3. If the file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// # TOML Format
//
// Example config.toml:
//
//	api_base = "https://console.walkai.example"
//	poll_seconds = 5
//
// Both fields are optional. Tilde expansion is performed on the config
// path. The package is read-only and stateless: configuration is loaded
// once at startup into an immutable Config struct.
package config
