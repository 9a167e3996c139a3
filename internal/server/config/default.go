// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr     = "127.0.0.1:5080"
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultRateLimit    = 50
	DefaultRateBurst    = 20

	DefaultAccessTTL      = time.Hour
	DefaultRefreshTTL     = 7 * 24 * time.Hour
	DefaultMessageTTL     = 60 * time.Second
	DefaultHashIterations = 100

	DefaultCredentialsFile = "/etc/sigmesh-server/credentials.yaml"
	DefaultEncryption      = "none"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:         DefaultHTTPAddr,
				ReadTimeout:  DefaultReadTimeout,
				WriteTimeout: DefaultWriteTimeout,
			},
			RateLimit: DefaultRateLimit,
			RateBurst: DefaultRateBurst,
			Audit:     true,
		},
		Session: SessionSection{
			AccessTTL:      DefaultAccessTTL,
			RefreshTTL:     DefaultRefreshTTL,
			MessageTTL:     DefaultMessageTTL,
			HashIterations: DefaultHashIterations,
		},
		Credentials: CredentialsSection{
			File:       DefaultCredentialsFile,
			Encryption: DefaultEncryption,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
