package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/tollgate/config"
)

var presignCmd = &cobra.Command{
	Use:   "presign [flags] <url>",
	Short: "Print a presigned URL",
	Long: `Sign a URL with query-string authentication using the configured
credentials. Without configured credentials the access and secret keys
are prompted for.

Examples:
  # Download link valid for the configured download expiry
  tollgate presign https://bucket.s3.amazonaws.com/reports/q1.pdf

  # Upload link bound to a content type
  tollgate presign -X PUT --expires 10m -H content-type=image/png \
    https://bucket.s3.amazonaws.com/avatars/me.png`,
	Args: cobra.ExactArgs(1),
	RunE: runPresign,
}

var (
	presignMethod  string
	presignExpires time.Duration
	presignHeaders []string
	presignQuery   []string
)

func init() {
	presignCmd.Flags().StringVarP(&presignMethod, "method", "X", http.MethodGet, "HTTP method: GET, HEAD, PUT, POST, DELETE")
	presignCmd.Flags().DurationVarP(&presignExpires, "expires", "e", 0, "validity (default: storage.download_expires)")
	presignCmd.Flags().StringArrayVarP(&presignHeaders, "header", "H", nil, "signed header name=value (repeatable)")
	presignCmd.Flags().StringArrayVarP(&presignQuery, "query", "Q", nil, "signed query parameter name=value (repeatable)")
	rootCmd.AddCommand(presignCmd)
}

func runPresign(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	expires := presignExpires
	if expires == 0 {
		expires = cfg.Storage.DownloadExpires
	}

	creds, err := signingCredentials(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	signed, err := presign(args[0], presignMethod, signingScope(cfg, expires), creds, presignHeaders, presignQuery)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), signed)
	return err
}
