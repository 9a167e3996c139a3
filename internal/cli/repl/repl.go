// Package repl provides the interactive shell of sigmesh-cli.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// DefaultPrompt is shown before each line.
const DefaultPrompt = "sigmesh> "

// Config configures a REPL.
type Config struct {
	// Prompt is shown before each line (default: DefaultPrompt).
	Prompt string

	// Commands are the completion candidates, e.g. "session auth".
	Commands []string

	// Exec runs one parsed line.
	Exec func(args []string) error

	// HistoryFile persists history between runs; empty disables it.
	HistoryFile string

	// Input, when set, is read line by line without line editing.
	// A nil Input reads the terminal through liner.
	Input io.Reader

	// Output receives prompts and errors (default: os.Stdout).
	Output io.Writer
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	prompt    string
	exec      func(args []string) error
	input     io.Reader
	output    io.Writer
	completer *Completer
	history   *History
}

// New creates a new REPL instance.
func New(cfg *Config) *REPL {
	r := &REPL{
		prompt:    cfg.Prompt,
		exec:      cfg.Exec,
		input:     cfg.Input,
		output:    cfg.Output,
		completer: NewCompleter(cfg.Commands),
		history:   NewHistory(cfg.HistoryFile),
	}
	if r.prompt == "" {
		r.prompt = DefaultPrompt
	}
	if r.output == nil {
		r.output = os.Stdout
	}
	if r.exec == nil {
		r.exec = func([]string) error { return nil }
	}
	return r
}

// Run starts the loop and returns when input ends or on exit/quit.
func (r *REPL) Run() error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "Warning: history not loaded: %v\n", err)
	}
	defer func() {
		if err := r.history.Save(); err != nil {
			fmt.Fprintf(r.output, "Warning: history not saved: %v\n", err)
		}
	}()

	if r.input != nil {
		return r.runPlain()
	}
	return r.runTerminal()
}

func (r *REPL) runPlain() error {
	reader := bufio.NewReader(r.input)
	for {
		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.output)
				return nil
			}
			return err
		}
		if r.handle(line) {
			return nil
		}
	}
}

func (r *REPL) runTerminal() error {
	state := liner.NewLiner()
	defer state.Close()

	state.SetCtrlCAborts(true)
	state.SetCompleter(r.completer.Complete)
	for _, entry := range r.history.Entries() {
		state.AppendHistory(entry)
	}

	for {
		line, err := state.Prompt(r.prompt)
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil {
			return err
		}
		if r.history.Add(strings.TrimSpace(line)) {
			state.AppendHistory(strings.TrimSpace(line))
		}
		if r.execute(line) {
			return nil
		}
	}
}

// handle records and executes one line. It reports whether to stop.
func (r *REPL) handle(line string) bool {
	r.history.Add(strings.TrimSpace(line))
	return r.execute(line)
}

// execute runs one line and reports whether the loop should stop.
func (r *REPL) execute(line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "exit", "quit":
		return true
	case "help", "?":
		for _, cmd := range r.completer.Commands() {
			fmt.Fprintf(r.output, "  %s\n", cmd)
		}
		return false
	}

	args, err := SplitArgs(line)
	if err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
		return false
	}
	if err := r.exec(args); err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
	}
	return false
}

// SplitArgs splits a line into arguments the way a POSIX shell would for
// plain words, single quotes, double quotes and backslash escapes.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, c := range line {
		switch {
		case escaped:
			current.WriteRune(c)
			escaped = false
		case quote == '\'':
			if c == '\'' {
				quote = 0
			} else {
				current.WriteRune(c)
			}
		case c == '\\':
			escaped, inWord = true, true
		case quote == '"':
			if c == '"' {
				quote = 0
			} else {
				current.WriteRune(c)
			}
		case c == '\'' || c == '"':
			quote, inWord = c, true
		case c == ' ' || c == '\t':
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(c)
			inWord = true
		}
	}

	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inWord {
		args = append(args, current.String())
	}
	return args, nil
}
