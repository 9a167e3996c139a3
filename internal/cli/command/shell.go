package command

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sigmesh/internal/cli/config"
	"github.com/yndnr/sigmesh/internal/cli/repl"
)

// ShellCommand returns the interactive shell command. Each line runs as a
// full sigmesh-cli invocation with the shell's global flags prepended.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Start an interactive shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history-file",
				Usage: "History file (default: ~/.sigmesh/history)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not read or write history",
			},
		},
		Action: runShell,
	}
}

func runShell(c *cli.Context) error {
	global := inheritedFlags(c)

	history := c.String("history-file")
	if history == "" {
		history = filepath.Join(config.DefaultDir(), "history")
	}
	if c.Bool("no-history") {
		history = ""
	}

	cfg := &repl.Config{
		Commands:    commandPaths(App().Commands, ""),
		HistoryFile: history,
		Output:      c.App.ErrWriter,
		Exec: func(args []string) error {
			if len(args) > 0 && args[0] == "shell" {
				return fmt.Errorf("already in a shell")
			}
			app := App()
			app.Reader = c.App.Reader
			app.Writer = c.App.Writer
			app.ErrWriter = c.App.ErrWriter
			app.ExitErrHandler = func(*cli.Context, error) {}
			return app.RunContext(c.Context, append(append([]string{c.App.Name}, global...), args...))
		},
	}
	if c.App.Reader != os.Stdin {
		cfg.Input = c.App.Reader
	}

	fmt.Fprintf(c.App.ErrWriter, "sigmesh-cli %s, type 'help' for commands and 'exit' to leave\n", c.App.Version)
	return repl.New(cfg).Run()
}

// inheritedFlags renders the global flags set on the shell invocation so
// every line sees the same server, session file and output settings.
func inheritedFlags(c *cli.Context) []string {
	var args []string
	for _, f := range globalFlags() {
		name := f.Names()[0]
		if !c.IsSet(name) {
			continue
		}
		switch f.(type) {
		case *cli.BoolFlag:
			args = append(args, "--"+name+"="+strconv.FormatBool(c.Bool(name)))
		case *cli.IntFlag:
			args = append(args, "--"+name+"="+strconv.Itoa(c.Int(name)))
		default:
			args = append(args, "--"+name+"="+c.String(name))
		}
	}
	return args
}

// commandPaths lists the runnable command paths, e.g. "session auth".
func commandPaths(cmds []*cli.Command, prefix string) []string {
	var paths []string
	for _, cmd := range cmds {
		path := prefix + cmd.Name
		if len(cmd.Subcommands) > 0 {
			paths = append(paths, commandPaths(cmd.Subcommands, path+" ")...)
			continue
		}
		if cmd.Name != "shell" {
			paths = append(paths, path)
		}
	}
	return paths
}
