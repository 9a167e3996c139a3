// Package config provides sigmesh-cli configuration and session state.
//
//   - spec.go: CLIConfig (~/.sigmesh/cli.yaml) and SessionState
//   - loader.go: loading and saving both as YAML
//
// The session state file holds live tokens and the session salt, so it is
// always written with mode 0600.
package config
