// Package buildinfo provides build information for SigMesh binaries.
//
// Version, Commit and BuildTime are injected via ldflags; the Go version
// and, when missing, the VCS revision are read from the binary itself.
package buildinfo
