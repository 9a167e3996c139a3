// Package command provides CLI command definitions for sigmesh-cli.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sigmesh/internal/cli/config"
	"github.com/yndnr/sigmesh/internal/cli/connection"
	"github.com/yndnr/sigmesh/internal/cli/output"
	"github.com/yndnr/sigmesh/internal/infra/buildinfo"
	"github.com/yndnr/sigmesh/internal/infra/tlsroots"
)

// requestTimeout bounds one API call.
const requestTimeout = 30 * time.Second

const metadataConfig = "config"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "sigmesh-cli",
		Usage:   "SigMesh provisioning and client tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			CredentialCommand(),
			SessionCommand(),
			MessageCommand(),
			EnvelopeCommand(),
			SystemCommand(),
			ShellCommand(),
		},
		Before: loadConfig,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file (default: ~/.sigmesh/cli.yaml)",
			EnvVars: []string{"SIGMESH_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "SigMesh server address (e.g., localhost:5080)",
			EnvVars: []string{"SIGMESH_SERVER"},
			Value:   config.DefaultServer,
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "PEM bundle trusted in addition to the system roots",
			EnvVars: []string{"SIGMESH_CA_FILE"},
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "Skip server certificate verification",
		},
		&cli.StringFlag{
			Name:    "session-file",
			Usage:   "Session state file (default: ~/.sigmesh/session.yaml)",
			EnvVars: []string{"SIGMESH_SESSION_FILE"},
		},
		&cli.IntFlag{
			Name:    "iterations",
			Usage:   "Signing hash iterations; must match the server",
			EnvVars: []string{"SIGMESH_ITERATIONS"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   config.DefaultOutput,
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (tokens and salts)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
	}
}

func loadConfig(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[metadataConfig] = cfg
	return nil
}

// GlobalFlags holds the effective global settings: flags and environment
// first, then the CLI config file, then defaults.
type GlobalFlags struct {
	// Server connection
	Server   string
	CAFile   string
	Insecure bool

	SessionFile string
	Iterations  int

	// Output format
	Output output.Format
	Wide   bool

	// Other
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	cfg, ok := c.App.Metadata[metadataConfig].(*config.CLIConfig)
	if !ok {
		cfg = config.Default()
	}

	flags := &GlobalFlags{
		Server:      pick(c, "server", cfg.Server),
		CAFile:      pick(c, "ca-file", cfg.CAFile),
		Insecure:    cfg.Insecure || c.Bool("insecure"),
		SessionFile: pick(c, "session-file", cfg.SessionFile),
		Iterations:  cfg.Iterations,
		Wide:        c.Bool("wide"),
		Verbose:     c.Bool("verbose"),
	}
	if c.IsSet("iterations") {
		flags.Iterations = c.Int("iterations")
	}

	format, err := output.ParseFormat(pick(c, "output", cfg.Output))
	if err != nil {
		return nil, err
	}
	flags.Output = format
	return flags, nil
}

// pick returns the flag value when it was given explicitly, else fallback
// when non-empty, else the flag default.
func pick(c *cli.Context, name, fallback string) string {
	if c.IsSet(name) || fallback == "" {
		return c.String(name)
	}
	return fallback
}

// NewClient builds an API client from the global flags. TLS is configured
// for https servers or when a CA file or --insecure is given.
func NewClient(flags *GlobalFlags) (*connection.HTTPClient, error) {
	if flags.Server == "" {
		return nil, fmt.Errorf("no server configured")
	}
	if strings.HasPrefix(flags.Server, "https://") || flags.CAFile != "" || flags.Insecure {
		tlsConfig, err := tlsroots.ClientConfig(flags.CAFile, flags.Insecure)
		if err != nil {
			return nil, err
		}
		return connection.NewHTTPClient(flags.Server, tlsConfig), nil
	}
	return connection.NewHTTPClient(flags.Server, nil), nil
}

func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, requestTimeout)
}

// render writes data in the selected output format.
func render(c *cli.Context, flags *GlobalFlags, data any) error {
	return output.NewFormatter(flags.Output, flags.Wide).Format(c.App.Writer, data)
}

// verbosef writes a diagnostic line to stderr when --verbose is set.
func verbosef(c *cli.Context, flags *GlobalFlags, format string, args ...any) {
	if flags.Verbose {
		fmt.Fprintf(c.App.ErrWriter, format+"\n", args...)
	}
}
