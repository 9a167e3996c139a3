// Package tlsroots provides TLS certificate management for SigMesh.
//
//   - roots.go: system roots plus custom CA files for clients
//   - watcher.go: server key pair hot-reload via fsnotify, with expiry warnings
package tlsroots
