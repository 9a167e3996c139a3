package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sigmesh/internal/cli/connection"
	"github.com/yndnr/sigmesh/internal/cli/output"
	"github.com/yndnr/sigmesh/internal/infra/buildinfo"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server probes and build information",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check server liveness",
				Action: probe("/health"),
			},
			{
				Name:   "ready",
				Usage:  "Check whether the server accepts traffic",
				Action: probe("/ready"),
			},
			{
				Name:   "version",
				Usage:  "Show CLI build information",
				Action: systemVersion,
			},
		},
	}
}

type probeResult struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Time     string `json:"time"`
}

func probe(path string) cli.ActionFunc {
	return func(c *cli.Context) error {
		flags, err := ParseGlobalFlags(c)
		if err != nil {
			return err
		}
		client, err := NewClient(flags)
		if err != nil {
			return err
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		resp, err := client.Get(ctx, path)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		var result probeResult
		if err := connection.ParseResponse(resp, &result); err != nil {
			return err
		}

		if flags.Output != output.FormatTable {
			return render(c, flags, result)
		}
		fmt.Fprintf(c.App.Writer, "Server is %s (%d active sessions)\n", result.Status, result.Sessions)
		fmt.Fprintf(c.App.Writer, "  Target: %s\n", client.BaseURL())
		return nil
	}
}

func systemVersion(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	return render(c, flags, buildinfo.Get())
}
