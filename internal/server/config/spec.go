// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for sigmesh-server.
type ServerConfig struct {
	Server      ServerSection      `koanf:"server"`
	Session     SessionSection     `koanf:"session"`
	Credentials CredentialsSection `koanf:"credentials"`
	Log         LogSection         `koanf:"log"`
}

// ServerSection configures the HTTP endpoint and its middleware.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`

	// RateLimit is the sustained requests per second allowed per client IP.
	// Zero disables rate limiting.
	RateLimit float64 `koanf:"rate_limit"`

	// RateBurst is the per-IP burst size.
	RateBurst int `koanf:"rate_burst"`

	// Audit enables per-request audit logging.
	Audit bool `koanf:"audit"`

	// MetricsToken, if set, is required as a bearer token on /metrics.
	MetricsToken string `koanf:"metrics_token"`

	// MetricsAllowList restricts /metrics to these IPs or CIDRs.
	MetricsAllowList []string `koanf:"metrics_allow_list"`

	// TrustProxy honours X-Forwarded-For and X-Real-IP when resolving the
	// caller address. Sessions are bound to that address.
	TrustProxy bool `koanf:"trust_proxy"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr         string        `koanf:"addr"`
	TLSCertFile  string        `koanf:"tls_cert_file"`
	TLSKeyFile   string        `koanf:"tls_key_file"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// SessionSection configures token and message lifetimes.
type SessionSection struct {
	AccessTTL        time.Duration `koanf:"access_ttl"`
	RefreshTTL       time.Duration `koanf:"refresh_ttl"`
	MessageTTL       time.Duration `koanf:"message_ttl"`
	HashIterations   int           `koanf:"hash_iterations"`
	StrictInvariants bool          `koanf:"strict_invariants"`
}

// CredentialsSection locates the provisioned client records.
type CredentialsSection struct {
	File string `koanf:"file"`

	// Format is yaml, json or jsonc. Inferred from the extension when empty.
	Format string `koanf:"format"`

	// Encryption is none, aead or age.
	Encryption string `koanf:"encryption"`

	// Key is the passphrase for aead encryption.
	Key string `koanf:"key"`

	// IdentityFile is the age identity used to decrypt the file.
	IdentityFile string `koanf:"identity_file"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
