// Package repl provides the interactive shell of sigmesh-cli.
//
//   - repl.go: main loop, builtins and shell-style argument splitting
//   - completer.go: tab completion over the command tree
//   - history.go: history persistence
//
// On a terminal the loop reads through peterh/liner for line editing,
// history navigation and completion. Lines that carry a secret, reset
// cookie or salt flag are never written to history.
package repl
