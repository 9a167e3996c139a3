package command

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sigmesh/internal/cli/connection"
	"github.com/yndnr/sigmesh/internal/core/service"
)

// MessageCommand returns the message subcommand group. Messages are signed
// with the saved session's salt and sent with its access token.
func MessageCommand() *cli.Command {
	messageFlags := func(extra ...cli.Flag) []cli.Flag {
		return append([]cli.Flag{
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Lifetime of the signed request",
				Value: service.DefaultMessageTTL,
			},
			&cli.StringFlag{
				Name:  "umid",
				Usage: "Message ID echoed back by the server",
			},
			&cli.BoolFlag{
				Name:  "no-verify",
				Usage: "Skip verification of the signed reply",
			},
		}, extra...)
	}

	return &cli.Command{
		Name:    "message",
		Aliases: []string{"msg"},
		Usage:   "Send signed messages over the saved session",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Query the session status",
				Flags:  messageFlags(),
				Action: messageStatus,
			},
			{
				Name:      "echo",
				Usage:     "Send a payload and print the signed echo",
				ArgsUsage: "PAYLOAD",
				Flags:     messageFlags(),
				Action:    messageEcho,
			},
		},
	}
}

func messageStatus(c *cli.Context) error {
	return sendMessage(c, "status", map[string]any{"cmd": "status"})
}

func messageEcho(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("echo takes exactly one PAYLOAD argument")
	}
	return sendMessage(c, "echo", map[string]any{
		"cmd":     "echo",
		"payload": parsePayload(c.Args().First()),
	})
}

// parsePayload treats arg as JSON when it parses, else as a plain string.
func parsePayload(arg string) any {
	dec := json.NewDecoder(strings.NewReader(arg))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return arg
	}
	if _, err := dec.Token(); err != io.EOF {
		return arg
	}
	return v
}

func sendMessage(c *cli.Context, route string, content map[string]any) error {
	flags, state, client, err := savedSession(c)
	if err != nil {
		return err
	}
	if umid := c.String("umid"); umid != "" {
		content["umid"] = umid
	}

	codec := service.NewEnvelopeCodec(&service.EnvelopeConfig{Iterations: flags.Iterations})
	request, err := codec.Pack(content, state.Salt, c.Duration("ttl"))
	if err != nil {
		return err
	}
	verbosef(c, flags, "request exp=%v", request.Fields()[service.FieldExp])

	ctx, cancel := requestContext(c)
	defer cancel()

	path := "/v1/" + url.PathEscape(state.SessionID) + "/" + route
	resp, err := client.Post(ctx, path, nil, state.AccessToken, request)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var raw json.RawMessage
	if err := connection.ParseResponse(resp, &raw); err != nil {
		return err
	}
	reply, err := service.FromRequest(raw)
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	if !c.Bool("no-verify") {
		if err := codec.Validate(reply, state.Salt); err != nil {
			return fmt.Errorf("reply rejected: %w", err)
		}
		verbosef(c, flags, "reply signature valid until %s", replyExpiry(reply))
	}
	return render(c, flags, reply.Fields())
}

func replyExpiry(env *service.Envelope) string {
	exp, ok := env.Get(service.FieldExp)
	if !ok {
		return "-"
	}
	n, ok := exp.(json.Number)
	if !ok {
		return fmt.Sprint(exp)
	}
	secs, err := n.Int64()
	if err != nil {
		return n.String()
	}
	return time.Unix(secs, 0).UTC().Format(time.RFC3339)
}
