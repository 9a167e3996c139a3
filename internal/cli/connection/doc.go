// Package connection provides the HTTP client used by sigmesh-cli.
//
// The client speaks the server's JSON response envelope: ParseResponse
// unwraps the data field on success and turns failures into *APIError
// carrying the structured error code. TLS trust comes from tlsroots.
package connection
