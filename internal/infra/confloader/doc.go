// Package confloader provides configuration loading mechanism.
//
// This package implements a configuration loader built on koanf that
// merges several sources into one key tree with "." as the path
// separator.
//
// Priority (highest to lowest):
//
//  1. Environment variables (SIGMESH_ prefix, "__" separates sections)
//  2. Configuration file (YAML)
//  3. Values already present in the target struct (defaults)
//
// Values are read either by unmarshaling into a typed struct or through
// Lookup, which reports missing keys explicitly instead of returning a
// zero value. Watcher reports changes to a configuration file so callers
// can hot-apply the settings that support it.
package confloader
