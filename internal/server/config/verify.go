// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifySession(&cfg.Session); err != nil {
		return err
	}
	if err := verifyCredentials(&cfg.Credentials); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("tls file: %w", err)
		}
	}
	if cfg.HTTP.ReadTimeout < 0 || cfg.HTTP.WriteTimeout < 0 {
		return errors.New("server.http timeouts must not be negative")
	}
	if cfg.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return errors.New("server.rate_burst must be at least 1 when rate limiting is enabled")
	}
	for _, entry := range cfg.MetricsAllowList {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("server.metrics_allow_list: %w", err)
			}
		} else if net.ParseIP(entry) == nil {
			return fmt.Errorf("server.metrics_allow_list: invalid ip %q", entry)
		}
	}
	return nil
}

func verifySession(cfg *SessionSection) error {
	if cfg.AccessTTL <= 0 {
		return errors.New("session.access_ttl must be positive")
	}
	if cfg.RefreshTTL <= 0 {
		return errors.New("session.refresh_ttl must be positive")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return errors.New("session.refresh_ttl must not be shorter than session.access_ttl")
	}
	if cfg.MessageTTL <= 0 {
		return errors.New("session.message_ttl must be positive")
	}
	if cfg.HashIterations < 1 {
		return errors.New("session.hash_iterations must be at least 1")
	}
	return nil
}

func verifyCredentials(cfg *CredentialsSection) error {
	if cfg.File == "" {
		return errors.New("credentials.file is required")
	}
	if cfg.Format != "" {
		switch strings.ToLower(cfg.Format) {
		case "yaml", "json", "jsonc":
		default:
			return fmt.Errorf("credentials.format %q is not supported", cfg.Format)
		}
	}
	switch strings.ToLower(cfg.Encryption) {
	case "", "none":
	case "aead":
		if cfg.Key == "" {
			return errors.New("credentials.key is required for aead encryption")
		}
	case "age":
		if cfg.IdentityFile == "" {
			return errors.New("credentials.identity_file is required for age encryption")
		}
	default:
		return fmt.Errorf("credentials.encryption %q is not supported", cfg.Encryption)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not supported", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format %q is not supported", cfg.Format)
	}
	return nil
}

// CredentialsFormat returns the configured credential file format, inferring
// it from the file extension when unset.
func (c *CredentialsSection) CredentialsFormat() string {
	if c.Format != "" {
		return strings.ToLower(c.Format)
	}
	name := c.File
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".age", ".sealed", ".enc":
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "json"
	case ".jsonc":
		return "jsonc"
	default:
		return "yaml"
	}
}
