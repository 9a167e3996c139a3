package command

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sigmesh/internal/cli/config"
	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/internal/core/service"
)

// maxEnvelopeInput caps what is read from stdin.
const maxEnvelopeInput = 1 << 20

// EnvelopeCommand returns the envelope subcommand group. It signs and checks
// messages offline; no server is contacted.
func EnvelopeCommand() *cli.Command {
	saltFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "salt",
			Usage:   "Session salt (default: the saved session's salt)",
			EnvVars: []string{"SIGMESH_SALT"},
		}
	}

	return &cli.Command{
		Name:    "envelope",
		Aliases: []string{"env"},
		Usage:   "Sign and verify message envelopes",
		Subcommands: []*cli.Command{
			{
				Name:      "pack",
				Usage:     "Stamp a JSON object with exp and signature",
				ArgsUsage: "[JSON|-]",
				Flags: []cli.Flag{
					saltFlag(),
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Lifetime of the envelope",
						Value: service.DefaultMessageTTL,
					},
				},
				Action: envelopePack,
			},
			{
				Name:      "verify",
				Usage:     "Check freshness, signature and required fields",
				ArgsUsage: "[JSON|-]",
				Flags: []cli.Flag{
					saltFlag(),
					&cli.StringSliceFlag{
						Name:    "require",
						Aliases: []string{"r"},
						Usage:   "Field that must be present and non-null",
					},
				},
				Action: envelopeVerify,
			},
		},
	}
}

func envelopePack(c *cli.Context) error {
	flags, salt, env, err := envelopeInput(c)
	if err != nil {
		return err
	}

	codec := service.NewEnvelopeCodec(&service.EnvelopeConfig{Iterations: flags.Iterations})
	packed, err := codec.Pack(env.Fields(), salt, c.Duration("ttl"))
	if err != nil {
		return err
	}

	raw, err := packed.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(raw))
	return err
}

// verifyResult is printed by envelope verify.
type verifyResult struct {
	Valid  bool   `json:"valid"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func envelopeVerify(c *cli.Context) error {
	flags, salt, env, err := envelopeInput(c)
	if err != nil {
		return err
	}

	codec := service.NewEnvelopeCodec(&service.EnvelopeConfig{Iterations: flags.Iterations})
	verr := codec.Validate(env, salt, c.StringSlice("require")...)

	result := verifyResult{Valid: verr == nil}
	if verr != nil {
		result.Code = domain.GetErrorCode(verr)
		result.Reason = service.RejectionReason(verr)
	}
	if err := render(c, flags, result); err != nil {
		return err
	}
	if verr != nil {
		return cli.Exit(verr.Error(), 2)
	}
	return nil
}

// envelopeInput resolves the salt and decodes the JSON object given as the
// first argument, or read from stdin when the argument is "-" or absent.
func envelopeInput(c *cli.Context) (*GlobalFlags, string, *service.Envelope, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, "", nil, err
	}

	salt := c.String("salt")
	if salt == "" {
		state, err := config.LoadSession(flags.SessionFile)
		if errors.Is(err, config.ErrNoSession) {
			return nil, "", nil, fmt.Errorf("no --salt given and %w", err)
		}
		if err != nil {
			return nil, "", nil, err
		}
		salt = state.Salt
	}

	var raw []byte
	switch arg := c.Args().First(); arg {
	case "", "-":
		raw, err = io.ReadAll(io.LimitReader(c.App.Reader, maxEnvelopeInput))
		if err != nil {
			return nil, "", nil, fmt.Errorf("read stdin: %w", err)
		}
	default:
		raw = []byte(arg)
	}

	env, err := service.FromRequest([]byte(strings.TrimSpace(string(raw))))
	if err != nil {
		return nil, "", nil, err
	}
	return flags, salt, env, nil
}
