package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/internal/auth/session"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and verify session tokens offline",
	}

	cmd.AddCommand(newTokenIssueCmd())
	cmd.AddCommand(newTokenVerifyCmd())

	return cmd
}

// tokenFlags are the session settings shared by issue and verify. Unset flags keep the
// BEEKEEPER_AUTH_* environment values.
type tokenFlags struct {
	keyPath string
	scheme  string
}

func (f *tokenFlags) register(cmd *cobra.Command) {
	keyPathFlag(cmd, &f.keyPath)
	cmd.Flags().StringVar(&f.scheme, "scheme", "", "Signing scheme: v4.public, v4.local or jwt-eddsa")
}

// service builds a token service from an existing key file. It never creates keys.
func (f *tokenFlags) service() (*session.Service, error) {
	cfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	cfg.KeyPath = f.keyPath
	if f.scheme != "" {
		cfg.Scheme = strings.ToLower(f.scheme)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ks, err := session.LoadKeys(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load key file %s (run `beekeeper keys init`): %w", cfg.KeyPath, err)
	}
	signer, err := session.NewSigner(cfg.Scheme, ks)
	if err != nil {
		return nil, err
	}
	return session.NewService(signer, cfg)
}

func newTokenIssueCmd() *cobra.Command {
	var (
		flags    tokenFlags
		issuer   string
		audience []string
		ttl      time.Duration
		claims   []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "issue <subject>",
		Short: "Sign a token for subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := flags.service()
			if err != nil {
				return err
			}
			custom, err := parseClaims(claims)
			if err != nil {
				return err
			}

			cfg := svc.Config()
			if !cmd.Flags().Changed("issuer") {
				issuer = cfg.Issuer
			}
			if !cmd.Flags().Changed("audience") {
				audience = cfg.Audience
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = cfg.TTL
			}

			raw, tok, err := svc.Issue(args[0], issuer, session.NewAudience(audience...), ttl, custom)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"token": raw, "claims": tok})
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&issuer, "issuer", "", "Issuer claim (default from config)")
	cmd.Flags().StringSliceVar(&audience, "audience", nil, "Audience claim, repeatable or comma separated")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime; 0 issues a token without exp")
	cmd.Flags().StringArrayVar(&claims, "claim", nil, "Custom claim key=value; JSON values are decoded")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the token with its decoded claims")

	return cmd
}

// parseClaims turns key=value pairs into a claim map. Values that parse as JSON keep
// their JSON type; anything else is a string.
func parseClaims(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --claim %q: want key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			decoded = v
		}
		out[k] = decoded
	}
	return out, nil
}

// verifyResult is the report printed by `token verify`.
type verifyResult struct {
	Valid  bool           `json:"valid"`
	Reason string         `json:"reason,omitempty"`
	Token  *session.Token `json:"token,omitempty"`
}

func newTokenVerifyCmd() *cobra.Command {
	var flags tokenFlags

	cmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Check a token's signature and timestamps and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := flags.service()
			if err != nil {
				return err
			}
			raw := strings.TrimSpace(args[0])

			var res verifyResult
			tok, err := svc.Verify(raw)
			if err == nil {
				res.Token = &tok
				_, err = svc.Authorize(raw)
			}
			if err != nil {
				res.Reason = fault.KindName(err)
			}
			res.Valid = err == nil

			if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}
