// Package config defines the sigmesh-cli configuration and session state.
package config

import (
	"time"

	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/pkg/token"
)

// Default values.
const (
	DefaultServer = "localhost:5080"
	DefaultOutput = "table"
)

// CLIConfig is the configuration for sigmesh-cli.
// Command-line flags and SIGMESH_* variables take precedence.
type CLIConfig struct {
	// Server is the address of the SigMesh server.
	Server string `yaml:"server"`

	// Output is the default format: table, json or yaml.
	Output string `yaml:"output"`

	// CAFile adds a PEM bundle to the trusted roots.
	CAFile string `yaml:"ca_file,omitempty"`

	// Insecure disables server certificate verification.
	Insecure bool `yaml:"insecure,omitempty"`

	// SessionFile stores the bundle of the current session.
	SessionFile string `yaml:"session_file,omitempty"`

	// Iterations must match the server's session.hash_iterations.
	Iterations int `yaml:"iterations,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:     DefaultServer,
		Output:     DefaultOutput,
		Iterations: token.DefaultIterations,
	}
}

// SessionState is the session a client obtained with `session auth`.
type SessionState struct {
	Server    string    `yaml:"server"`
	ClientID  string    `yaml:"tid"`
	UpdatedAt time.Time `yaml:"updated_at"`

	SessionID    string `yaml:"sid"`
	Salt         string `yaml:"salt"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
}

// NewSessionState records bundle as the current session of tid on server.
func NewSessionState(server, tid string, bundle *domain.Bundle) *SessionState {
	s := &SessionState{Server: server, ClientID: tid}
	s.Update(bundle)
	return s
}

// Update replaces the session credentials after a rotation.
func (s *SessionState) Update(bundle *domain.Bundle) {
	s.SessionID = bundle.SessionID
	s.Salt = bundle.Salt
	s.AccessToken = bundle.AccessToken
	s.RefreshToken = bundle.RefreshToken
	s.UpdatedAt = time.Now().UTC().Truncate(time.Second)
}
