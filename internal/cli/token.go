package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-otp/pkg/api"
	"github.com/jeremyhahn/go-otp/pkg/otp"
	"github.com/jeremyhahn/go-otp/pkg/secret"
)

type requestFlags struct {
	secret    string
	digits    int
	step      int64
	algorithm string
	encoding  string
	counter   uint64
}

func (f *requestFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.secret, "secret", "", "Secret or otpauth:// URI, used instead of a registry lookup")
	fl.IntVar(&f.digits, "digits", 0, "Token length, 6 to 10 (overrides OTPCTL_DIGITS)")
	fl.Int64Var(&f.step, "step", 0, "Time step in seconds (overrides OTPCTL_STEP)")
	fl.StringVar(&f.algorithm, "algorithm", "", "HMAC algorithm: SHA1, SHA256, SHA512 (overrides OTPCTL_ALGORITHM)")
	fl.StringVar(&f.encoding, "encoding", "", "Secret encoding: base32 or hex")
	fl.Uint64Var(&f.counter, "counter", 0, "HOTP counter; replaces the time-derived counter")
}

// request merges flags over the configured defaults.
func (a *app) request(cmd *cobra.Command, args []string, f *requestFlags) (api.Request, error) {
	req := api.Request{
		Secret:    f.secret,
		Digits:    a.cfg.Digits,
		Step:      a.cfg.Step,
		Algorithm: a.cfg.Algorithm,
	}
	if len(args) > 0 {
		req.Service = args[0]
	}
	if cmd.Flags().Changed("digits") {
		req.Digits = f.digits
	}
	if cmd.Flags().Changed("step") {
		req.Step = f.step
	}
	if f.algorithm != "" {
		req.Algorithm = f.algorithm
	}
	if f.encoding != "" {
		enc, err := secret.ParseEncoding(f.encoding)
		if err != nil {
			return api.Request{}, err
		}
		req.Encoding = enc
	}
	if cmd.Flags().Changed("counter") {
		c := f.counter
		req.Counter = &c
	}
	return req, nil
}

func (a *app) tokenCommand() *cobra.Command {
	var f requestFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "token [service]",
		Short: "Print the current code for a service or secret",
		Long: `Print the current code for a service. The service name is looked up in
the environment, the dotenv files and the YAML registry in that order. A name
that no source knows and that is at least OTPCTL_RAW_MIN_LENGTH characters
long is used as the secret itself. --secret skips the lookup.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && f.secret == "" {
				return fmt.Errorf("%w: a service name or --secret is required", api.ErrInvalidRequest)
			}
			req, err := a.request(cmd, args, &f)
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			res, err := svc.Token(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Token)
			return err
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the token with its counter and timing as JSON")
	return cmd
}

func (a *app) tokensCommand() *cobra.Command {
	var group string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Print codes for every known service",
		Long: `Print codes for every secret the sources can enumerate, or with --group
for the services listed in the OTP_SECRETS_<ID> variable. Failures are
reported per service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}

			var toks []api.ServiceToken
			if group != "" {
				toks, err = svc.GroupTokens(cmd.Context(), group)
			} else {
				toks, err = svc.Tokens(cmd.Context())
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), toks)
			}
			return writeTokenTable(cmd.OutOrStdout(), toks)
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "Group id, read from OTP_SECRETS_<ID>")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func (a *app) verifyCommand() *cobra.Command {
	var f requestFlags
	var skew uint

	cmd := &cobra.Command{
		Use:   "verify [service] code",
		Short: "Check a code against a service or secret",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[len(args)-1]
			args = args[:len(args)-1]
			if len(args) == 0 && f.secret == "" {
				return fmt.Errorf("%w: a service name or --secret is required", api.ErrInvalidRequest)
			}
			req, err := a.request(cmd, args, &f)
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			if err := svc.Verify(cmd.Context(), api.VerifyRequest{Request: req, Code: code, Skew: skew}); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return err
		},
	}
	f.register(cmd)
	cmd.Flags().UintVar(&skew, "skew", 1, "Accepted time steps either side of now, 0 means 1 (TOTP only)")
	return cmd
}

func writeTokenTable(w io.Writer, toks []api.ServiceToken) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tSOURCE\tTOKEN\tREMAINING")
	for _, t := range toks {
		if t.Err != nil || t.Result == nil {
			fmt.Fprintf(tw, "%s\t%s\t-\terror: %s\n", t.Service, t.Source, t.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Service, t.Source, t.Result.Token, remaining(t.Result))
	}
	return tw.Flush()
}

func remaining(r *otp.Result) string {
	if r.SecondsRemaining == 0 {
		return "-"
	}
	return fmt.Sprintf("%ds", r.SecondsRemaining)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
