package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeremyhahn/go-otp/pkg/api"
	"github.com/jeremyhahn/go-otp/pkg/secret"
	"github.com/jeremyhahn/go-otp/pkg/uri"
)

const redacted = "***REDACTED***"

// parsedURI is the printable form of a provisioning URI.
type parsedURI struct {
	Type      string `json:"type"`
	Label     string `json:"label"`
	Name      string `json:"name"`
	Issuer    string `json:"issuer,omitempty"`
	Account   string `json:"account,omitempty"`
	Secret    string `json:"secret,omitempty"`
	Digits    int    `json:"digits"`
	Step      int64  `json:"step"`
	Algorithm string `json:"algorithm"`
}

func (a *app) parseCommand() *cobra.Command {
	var showSecret bool

	cmd := &cobra.Command{
		Use:   "parse uri",
		Short: "Decode an otpauth://totp provisioning URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := uri.Parse(args[0])
			if err != nil {
				return err
			}
			out := parsedURI{
				Type:      u.Type,
				Label:     u.Label,
				Name:      u.Name,
				Issuer:    u.Issuer,
				Account:   u.Account,
				Digits:    u.Digits,
				Step:      u.Step,
				Algorithm: u.Algorithm,
			}
			if u.HasSecret() {
				out.Secret = redacted
				if showSecret {
					out.Secret = u.Secret
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&showSecret, "show-secret", false, "Print the secret instead of redacting it")
	return cmd
}

func (a *app) secretCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Work with shared secrets",
	}

	var size int
	var encoding string
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Print a new random secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc, err := secret.ParseEncoding(encoding)
			if err != nil {
				return err
			}
			s, err := secret.Generate(size)
			if err != nil {
				return err
			}
			if enc == secret.EncodingHex {
				key, err := secret.DecodeBase32(s)
				if err != nil {
					return err
				}
				if s, err = secret.Encode(key, enc); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
			return err
		},
	}
	gen.Flags().IntVar(&size, "size", secret.DefaultSize, "Secret length in bytes")
	gen.Flags().StringVar(&encoding, "encoding", string(secret.EncodingBase32), "Output encoding: base32 or hex")

	cmd.AddCommand(gen)
	return cmd
}

func (a *app) uriCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uri",
		Short: "Build provisioning URIs",
	}

	var (
		opts     uri.GenerateOpts
		qrFile   string
		qrSize   int
		terminal bool
	)
	build := &cobra.Command{
		Use:   "build",
		Short: "Enroll a new TOTP key and print its otpauth:// URI",
		Long: `Enroll a new TOTP key with a random secret and print its provisioning
URI. --qr writes the URI as a PNG QR code; --terminal draws it on stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.Issuer) == "" || strings.TrimSpace(opts.AccountName) == "" {
				return fmt.Errorf("%w: --issuer and --account are required", api.ErrInvalidRequest)
			}
			if !cmd.Flags().Changed("digits") {
				opts.Digits = a.cfg.Digits
			}
			if !cmd.Flags().Changed("step") {
				opts.Step = a.cfg.Step
			}
			if opts.Algorithm == "" {
				opts.Algorithm = a.cfg.Algorithm
			}

			u, err := uri.Generate(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintln(out, u.String()); err != nil {
				return err
			}

			if qrFile != "" {
				img, err := u.PNG(qrSize)
				if err != nil {
					return err
				}
				if err := os.WriteFile(qrFile, img, 0o600); err != nil {
					return fmt.Errorf("failed to write %s: %w", qrFile, err)
				}
				a.log.Info("qr code written", zap.String("path", qrFile))
			}
			if terminal {
				art, err := u.Terminal()
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(out, art)
				return err
			}
			return nil
		},
	}
	fl := build.Flags()
	fl.StringVar(&opts.Issuer, "issuer", "", "Issuing organization (required)")
	fl.StringVar(&opts.AccountName, "account", "", "Account name (required)")
	fl.IntVar(&opts.Digits, "digits", 0, "Token length (overrides OTPCTL_DIGITS)")
	fl.Int64Var(&opts.Step, "step", 0, "Period in seconds (overrides OTPCTL_STEP)")
	fl.StringVar(&opts.Algorithm, "algorithm", "", "SHA1, SHA256 or SHA512 (overrides OTPCTL_ALGORITHM)")
	fl.UintVar(&opts.SecretSize, "size", secret.DefaultSize, "Secret length in bytes")
	fl.StringVar(&qrFile, "qr", "", "Write a PNG QR code to this file")
	fl.IntVar(&qrSize, "qr-size", uri.DefaultQRSize, "PNG edge length in pixels")
	fl.BoolVar(&terminal, "terminal", false, "Draw the QR code on stdout")

	cmd.AddCommand(build)
	return cmd
}
