package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/tollgate/config"
	"github.com/sagarc03/tollgate/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Work with session tokens",
}

var sessionDecodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Print the claims of a session token",
	Long: `Decode a session token (the cookie value) with the configured key and
print its claims. Expired tokens are rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionDecode,
}

func init() {
	sessionCmd.AddCommand(sessionDecodeCmd)
	rootCmd.AddCommand(sessionCmd)
}

// ClaimsOutput is what session decode prints.
type ClaimsOutput struct {
	Prefix   string    `json:"prefix"`
	Nonce    uint64    `json:"nonce"`
	Expires  time.Time `json:"expires"`
	Provider string    `json:"provider,omitempty"`
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name,omitempty"`
	Auth     string    `json:"auth,omitempty"`
}

func decodeToken(codec session.Codec, token string) (ClaimsOutput, error) {
	claims, err := codec.Decode(token)
	if err != nil {
		return ClaimsOutput{}, err
	}

	s := session.Session{Token: token, Claims: claims}
	return ClaimsOutput{
		Prefix:   s.Prefix(),
		Nonce:    claims.Nonce,
		Expires:  claims.ExpiresAt,
		Provider: claims.Provider,
		ID:       claims.ID,
		Name:     claims.Name,
		Auth:     claims.Auth.String(),
	}, nil
}

func runSessionDecode(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	key, err := session.LoadPrivateKey(cfg.Session.KeyFile)
	if err != nil {
		return err
	}

	codec, err := session.NewRSACodec(key, cfg.Session.Timeout)
	if err != nil {
		return err
	}

	out, err := decodeToken(codec, args[0])
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), out)
}
