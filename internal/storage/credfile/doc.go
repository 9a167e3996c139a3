// Package credfile reads and writes the provisioned client credential file.
//
// The file holds one document with a "clients" list of records. It may be
// written as YAML, JSON or JSONC (JSON with comments and trailing commas),
// and may be stored at rest in one of three ways:
//
//   - none: plaintext
//   - aead: sealed with pkg/crypto/adaptive under a passphrase
//   - age: encrypted to one or more age X25519 recipients
//
// The server only reads the file. Writing is used by sigmesh-cli when
// provisioning clients.
package credfile
