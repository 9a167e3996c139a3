package command

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"filippo.io/age"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/internal/core/service"
	"github.com/yndnr/sigmesh/internal/storage/credfile"
	"github.com/yndnr/sigmesh/pkg/token"
)

// DefaultPassphraseEnv names the variable holding the aead passphrase. It is
// the same variable the server reads credentials.key from.
const DefaultPassphraseEnv = "SIGMESH_CREDENTIALS__KEY"

// CredentialCommand returns the credential subcommand group.
func CredentialCommand() *cli.Command {
	return &cli.Command{
		Name:    "credential",
		Aliases: []string{"cred"},
		Usage:   "Provision client credentials and manage credential files",
		Subcommands: []*cli.Command{
			{
				Name:  "new",
				Usage: "Add a client to a credential file and print its secrets once",
				Flags: append(fileFlags(true),
					&cli.StringFlag{
						Name:     "tid",
						Aliases:  []string{"t"},
						Usage:    "Client ID",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Usage:   "Maximum concurrent sessions",
						Value:   1,
					},
					&cli.StringFlag{
						Name:  "secret",
						Usage: "Client secret (default: generated)",
					},
					&cli.StringFlag{
						Name:  "reset-cookie",
						Usage: "Reset cookie (default: generated)",
					},
				),
				Action: credentialNew,
			},
			{
				Name:   "list",
				Usage:  "List the clients in a credential file",
				Flags:  fileFlags(true),
				Action: credentialList,
			},
			{
				Name:      "hash",
				Usage:     "Hash a value the way the server does",
				ArgsUsage: "VALUE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "salt",
						Usage:    "Hash salt",
						Required: true,
					},
				},
				Action: credentialHash,
			},
			{
				Name:  "seal",
				Usage: "Encrypt a plaintext credential file",
				Flags: append(fileFlags(false),
					&cli.StringFlag{
						Name:     "in",
						Usage:    "Plaintext credential file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Encrypted output file",
						Required: true,
					},
				),
				Action: credentialSeal,
			},
			{
				Name:  "unseal",
				Usage: "Decrypt a credential file",
				Flags: append(fileFlags(false),
					&cli.StringFlag{
						Name:     "in",
						Usage:    "Encrypted credential file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Plaintext output file (default: stdout)",
					},
				),
				Action: credentialUnseal,
			},
			{
				Name:  "keygen",
				Usage: "Generate an age identity for encrypting credential files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Identity file to create",
						Required: true,
					},
				},
				Action: credentialKeygen,
			},
		},
	}
}

// fileFlags are the flags describing how a credential file is stored.
func fileFlags(withFile bool) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Usage: "yaml, json or jsonc (default: from the file extension)",
		},
		&cli.StringFlag{
			Name:  "encryption",
			Usage: "none, aead or age",
			Value: string(credfile.EncryptionNone),
		},
		&cli.StringFlag{
			Name:  "passphrase-env",
			Usage: "Environment variable holding the aead passphrase",
			Value: DefaultPassphraseEnv,
		},
		&cli.StringFlag{
			Name:  "identity",
			Usage: "age identity file",
		},
		&cli.StringSliceFlag{
			Name:  "recipient",
			Usage: "age recipient (age1...) to encrypt to",
		},
	}
	if withFile {
		flags = append([]cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Credential file",
				EnvVars:  []string{"SIGMESH_CREDENTIALS__FILE"},
				Required: true,
			},
		}, flags...)
	}
	return flags
}

// fileOptions builds credfile options from the file flags. Age recipients
// default to those of the given identities.
func fileOptions(c *cli.Context) (credfile.Options, error) {
	var opts credfile.Options

	if f := c.String("format"); f != "" {
		format, err := credfile.ParseFormat(f)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}

	encryption, err := credfile.ParseEncryption(c.String("encryption"))
	if err != nil {
		return opts, err
	}
	opts.Encryption = encryption

	switch encryption {
	case credfile.EncryptionAEAD:
		name := c.String("passphrase-env")
		passphrase := os.Getenv(name)
		if passphrase == "" {
			return opts, fmt.Errorf("aead encryption needs a passphrase in $%s", name)
		}
		opts.Keys.Passphrase = []byte(passphrase)

	case credfile.EncryptionAge:
		if path := c.String("identity"); path != "" {
			ids, err := credfile.ReadIdentityFile(path)
			if err != nil {
				return opts, err
			}
			opts.Keys.Identities = ids
			for _, id := range ids {
				if x, ok := id.(*age.X25519Identity); ok {
					opts.Keys.Recipients = append(opts.Keys.Recipients, x.Recipient())
				}
			}
		}
		if keys := c.StringSlice("recipient"); len(keys) > 0 {
			recipients, err := credfile.ParseRecipients(keys)
			if err != nil {
				return opts, err
			}
			opts.Keys.Recipients = recipients
		}
		if len(opts.Keys.Identities) == 0 && len(opts.Keys.Recipients) == 0 {
			return opts, fmt.Errorf("age encryption needs --identity or --recipient")
		}
	}
	return opts, nil
}

// provisioned is printed once by credential new.
type provisioned struct {
	ClientID    string `json:"tid"`
	MaxSessions int    `json:"limit"`
	Secret      string `json:"secret"`
	ResetCookie string `json:"reset_cookie"`
}

func credentialNew(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	opts, err := fileOptions(c)
	if err != nil {
		return err
	}

	path := c.String("file")
	records, err := credfile.Load(path, opts)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	tid := c.String("tid")
	for _, r := range records {
		if r.ID == tid {
			return domain.ErrInvalidArgument.WithDetails("client " + tid + " already exists in " + path)
		}
	}

	secret, err := orGenerated(c.String("secret"))
	if err != nil {
		return err
	}
	cookie, err := orGenerated(c.String("reset-cookie"))
	if err != nil {
		return err
	}

	record, err := service.NewClientCredential(tid, c.Int("limit"), secret, cookie, flags.Iterations)
	if err != nil {
		return err
	}
	records = append(records, record)
	if err := credfile.Save(path, records, opts); err != nil {
		return err
	}
	verbosef(c, flags, "%s now holds %d clients", path, len(records))

	return render(c, flags, provisioned{
		ClientID:    tid,
		MaxSessions: record.MaxSessions,
		Secret:      secret,
		ResetCookie: cookie,
	})
}

func orGenerated(v string) (string, error) {
	if v != "" {
		return v, nil
	}
	return token.GenerateSecret()
}

// credentialRow is how a stored record is listed.
type credentialRow struct {
	ClientID    string `json:"tid"`
	MaxSessions int    `json:"limit"`
	Salt        string `json:"salt" table:"wide"`
}

func credentialList(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	opts, err := fileOptions(c)
	if err != nil {
		return err
	}

	records, err := credfile.Load(c.String("file"), opts)
	if err != nil {
		return err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	rows := make([]credentialRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, credentialRow{ClientID: r.ID, MaxSessions: r.MaxSessions, Salt: r.Salt})
	}
	return render(c, flags, rows)
}

func credentialHash(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("hash takes exactly one VALUE argument")
	}
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, token.Hash(c.Args().First(), c.String("salt"), flags.Iterations))
	return err
}

func credentialSeal(c *cli.Context) error {
	opts, err := fileOptions(c)
	if err != nil {
		return err
	}
	if opts.Encryption == credfile.EncryptionNone {
		return fmt.Errorf("seal needs --encryption aead or age")
	}

	in := c.String("in")
	plaintext, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	format := opts.Format
	if format == "" {
		format = credfile.FormatFromPath(in)
	}
	// Refuse to seal something the server could not load.
	records, err := credfile.Parse(plaintext, format)
	if err != nil {
		return err
	}
	if _, err := service.NewCredentialStore(records, 0); err != nil {
		return err
	}

	sealed, err := credfile.Encrypt(plaintext, opts.Encryption, opts.Keys)
	if err != nil {
		return err
	}
	if err := credfile.WriteAtomic(c.String("out"), sealed); err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "Sealed %d clients into %s\n", len(records), c.String("out"))
	return nil
}

func credentialUnseal(c *cli.Context) error {
	opts, err := fileOptions(c)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(c.String("in"))
	if err != nil {
		return err
	}
	plaintext, err := credfile.Decrypt(data, opts.Encryption, opts.Keys)
	if err != nil {
		return err
	}

	if out := c.String("out"); out != "" {
		return credfile.WriteAtomic(out, plaintext)
	}
	_, err = c.App.Writer.Write(plaintext)
	return err
}

func credentialKeygen(c *cli.Context) error {
	identity, recipient, err := credfile.GenerateIdentity()
	if err != nil {
		return err
	}
	path := c.String("out")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	content := "# public key: " + recipient + "\n" + identity + "\n"
	if err := credfile.WriteAtomic(path, []byte(content)); err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, recipient)
	return err
}
