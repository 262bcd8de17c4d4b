// Package configstore loads and persists paramref settings from an
// XDG-compliant config.toml. Values may reference environment variables with
// $VAR or ${VAR}; a backslash keeps a literal dollar. PARAMREF_* environment
// variables override the file, and command-line flags override both.
package configstore
