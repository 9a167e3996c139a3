// Package output provides output formatting for sigmesh-cli.
//
// Results render as an aligned table (the default), indented JSON, or YAML.
// The table formatter understands Table values, structs, slices of structs
// and maps; struct fields tagged `table:"wide"` only appear in wide mode.
package output
