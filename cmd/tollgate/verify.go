package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/config"
	"github.com/sagarc03/tollgate/keybackend"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [flags] <url>",
	Short: "Check a presigned URL against the configured access keys",
	Long: `Verify the signature and expiry of a presigned URL using auth.keys,
the same keys GET /auth/verify uses.

Examples:
  tollgate verify 'https://files.example.com/report.pdf?X-Amz-Algorithm=...'
  tollgate verify -X PUT 'https://files.example.com/upload.bin?X-Amz-Algorithm=...'`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var verifyMethod string

func init() {
	verifyCmd.Flags().StringVarP(&verifyMethod, "method", "X", http.MethodGet, "HTTP method the URL is used with")
	rootCmd.AddCommand(verifyCmd)
}

func verifyURL(verifier *tollgate.SignatureVerifier, method, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	headers := http.Header{}
	headers.Set("Host", u.Host)

	return verifier.Verify(method, u.Path, u.Query(), headers)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	store, err := keybackend.NewSecretStore(cfg.Auth.Keys)
	if err != nil {
		return fmt.Errorf("load access keys: %w", err)
	}

	verifier := tollgate.NewSignatureVerifier(cfg.Storage.Region, cfg.Storage.Service, store)
	if err := verifyURL(verifier, verifyMethod, args[0]); err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), "valid")
	return err
}
