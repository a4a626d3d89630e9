package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/config"
)

var policyCmd = &cobra.Command{
	Use:   "policy [flags]",
	Short: "Print a signed POST policy",
	Long: `Build and sign a browser upload policy for the configured bucket and
print the form URL and fields as JSON.

Examples:
  # Let the browser choose the file name under incoming/
  tollgate policy --key 'incoming/${filename}' --max-size 10485760

  # Fixed key and content type
  tollgate policy --key avatars/me.png --content-type image/png`,
	Args: cobra.NoArgs,
	RunE: runPolicy,
}

var (
	policyKey         string
	policyContentType string
	policyMaxSize     int64
	policyExpires     time.Duration
	policyFields      []string
)

func init() {
	policyCmd.Flags().String("bucket", "", "bucket (default: storage.bucket)")
	policyCmd.Flags().String("endpoint", "", "form URL (default: storage.endpoint)")
	policyCmd.Flags().StringVarP(&policyKey, "key", "k", "", "object key, may end with "+tollgate.FilenamePlaceholder)
	policyCmd.Flags().StringVar(&policyContentType, "content-type", "", "required Content-Type")
	policyCmd.Flags().Int64Var(&policyMaxSize, "max-size", -1, "maximum upload size in bytes (default: storage.max_upload_size)")
	policyCmd.Flags().DurationVarP(&policyExpires, "expires", "e", 0, "validity (default: storage.upload_expires)")
	policyCmd.Flags().StringArrayVarP(&policyFields, "field", "F", nil, "extra form field name=value (repeatable)")
	_ = policyCmd.MarkFlagRequired("key")
	rootCmd.AddCommand(policyCmd)
}

func runPolicy(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	expires := policyExpires
	if expires == 0 {
		expires = cfg.Storage.UploadExpires
	}

	maxSize := policyMaxSize
	if maxSize < 0 {
		maxSize = cfg.Storage.MaxUploadSize
	}

	creds, err := signingCredentials(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	out, err := buildPolicy(cfg.Storage.Endpoint, PolicyRequest{
		Bucket:      cfg.Storage.Bucket,
		Key:         policyKey,
		ContentType: policyContentType,
		MaxSize:     maxSize,
		Fields:      policyFields,
	}, signingScope(cfg, expires), creds)
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), out)
}
