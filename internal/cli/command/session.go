package command

import (
	"fmt"
	"net/url"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sigmesh/internal/cli/config"
	"github.com/yndnr/sigmesh/internal/cli/connection"
	"github.com/yndnr/sigmesh/internal/core/domain"
)

// SessionCommand returns the session subcommand group.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sess"},
		Usage:   "Authenticate and manage the current session",
		Subcommands: []*cli.Command{
			{
				Name:  "auth",
				Usage: "Authenticate a client and save the new session",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "tid",
						Aliases:  []string{"t"},
						Usage:    "Client ID",
						EnvVars:  []string{"SIGMESH_TID"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "secret",
						Usage:    "Pre-shared client secret",
						EnvVars:  []string{"SIGMESH_SECRET"},
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "no-save",
						Usage: "Print the bundle without saving it",
					},
				},
				Action: sessionAuth,
			},
			{
				Name:    "refresh",
				Aliases: []string{"rotate"},
				Usage:   "Rotate the saved session using its refresh token",
				Action:  sessionRefresh,
			},
			{
				Name:   "close",
				Usage:  "Close the saved session",
				Action: sessionClose,
			},
			{
				Name:  "reset",
				Usage: "Close every session of a client using its reset cookie",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "tid",
						Aliases:  []string{"t"},
						Usage:    "Client ID",
						EnvVars:  []string{"SIGMESH_TID"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "reset-cookie",
						Usage:    "Client reset cookie",
						EnvVars:  []string{"SIGMESH_RESET_COOKIE"},
						Required: true,
					},
				},
				Action: sessionReset,
			},
			{
				Name:   "show",
				Usage:  "Show the saved session",
				Action: sessionShow,
			},
		},
	}
}

// sessionView is how a session is printed. Credentials only show with --wide.
type sessionView struct {
	SessionID    string `json:"sid"`
	ClientID     string `json:"tid,omitempty"`
	Server       string `json:"server,omitempty"`
	Salt         string `json:"salt" table:"wide"`
	AccessToken  string `json:"access_token" table:"wide"`
	RefreshToken string `json:"refresh_token" table:"wide"`
}

func viewOf(s *config.SessionState) *sessionView {
	return &sessionView{
		SessionID:    s.SessionID,
		ClientID:     s.ClientID,
		Server:       s.Server,
		Salt:         s.Salt,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
}

func sessionAuth(c *cli.Context) error {
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

	tid := c.String("tid")
	query := url.Values{"tid": {tid}, "secret": {c.String("secret")}}
	resp, err := client.Post(ctx, "/v1/auth", query, "", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var bundle domain.Bundle
	if err := connection.ParseResponse(resp, &bundle); err != nil {
		return err
	}

	state := config.NewSessionState(flags.Server, tid, &bundle)
	if !c.Bool("no-save") {
		if err := config.SaveSession(state, flags.SessionFile); err != nil {
			return err
		}
		verbosef(c, flags, "session %s saved", bundle.SessionID)
	}
	return render(c, flags, viewOf(state))
}

func sessionRefresh(c *cli.Context) error {
	flags, state, client, err := savedSession(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/"+url.PathEscape(state.SessionID)+"/refresh_session", nil, state.RefreshToken, nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var bundle domain.Bundle
	if err := connection.ParseResponse(resp, &bundle); err != nil {
		return err
	}

	previous := state.SessionID
	state.Update(&bundle)
	if err := config.SaveSession(state, flags.SessionFile); err != nil {
		return err
	}
	verbosef(c, flags, "session %s rotated to %s", previous, state.SessionID)
	return render(c, flags, viewOf(state))
}

func sessionClose(c *cli.Context) error {
	flags, state, client, err := savedSession(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/"+url.PathEscape(state.SessionID)+"/close_session", nil, state.RefreshToken, nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		// The server already dropped it; forget it locally too.
		if connection.ErrorCode(err) != domain.ErrSessionNotFound.Code {
			return err
		}
	}

	if err := config.RemoveSession(flags.SessionFile); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Session %s closed\n", state.SessionID)
	return nil
}

func sessionReset(c *cli.Context) error {
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

	tid := c.String("tid")
	query := url.Values{"tid": {tid}, "reset_cookie": {c.String("reset-cookie")}}
	resp, err := client.Post(ctx, "/v1/reset", query, "", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Closed int `json:"closed"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if state, err := config.LoadSession(flags.SessionFile); err == nil && state.ClientID == tid {
		if err := config.RemoveSession(flags.SessionFile); err != nil {
			return err
		}
	}
	return render(c, flags, result)
}

func sessionShow(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	state, err := config.LoadSession(flags.SessionFile)
	if err != nil {
		return err
	}
	return render(c, flags, viewOf(state))
}

// savedSession loads the saved session and a client for the server it
// was created on.
func savedSession(c *cli.Context) (*GlobalFlags, *config.SessionState, *connection.HTTPClient, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, nil, nil, err
	}
	state, err := config.LoadSession(flags.SessionFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if !c.IsSet("server") && state.Server != "" {
		flags.Server = state.Server
	}
	client, err := NewClient(flags)
	if err != nil {
		return nil, nil, nil, err
	}
	return flags, state, client, nil
}
