// Package main provides the entry point for sigmesh-cli.
//
// The CLI covers both sides of a SigMesh deployment:
//
//   - Operators provision clients into credential files and seal them
//   - Clients authenticate, rotate and close sessions
//   - Signed status and echo messages over the saved session
//   - Offline packing and verification of message envelopes
//
// Usage:
//
//	sigmesh-cli credential new -f clients.yaml --tid srv1 --limit 2
//	sigmesh-cli -s localhost:5080 session auth --tid srv1 --secret ...
//	sigmesh-cli message echo '{"hello":"world"}'
//	sigmesh-cli envelope verify --salt ... < message.json
package main
