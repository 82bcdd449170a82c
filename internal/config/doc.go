// Package config loads, normalizes, and validates folio's TOML configuration.
//
// Load resolves the file (explicit path, ~/.config/folio/config.toml, or
// ./folio.toml), layers it over Default(), applies environment overrides for
// broker settings, expands paths, and validates the result. Workers and the
// console share one Config so queue names, directories, and backoff settings
// agree across processes.
package config
