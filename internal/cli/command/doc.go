// Package command provides CLI command definitions for sigmesh-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: App, global flags and their precedence over cli.yaml
//   - credential.go: provisioning and credential file encryption
//   - session.go: auth, refresh, close and reset against the HTTP API
//   - message.go: signed status and echo calls over the saved session
//   - envelope.go: offline pack and verify
//   - system.go: health and readiness probes
//
// Actions write results to App.Writer in the format chosen by --output.
package command
