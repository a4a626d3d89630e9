package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/tollgate/config"
	"github.com/sagarc03/tollgate/session"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the session signing key",
	Long: `Generate an RSA key for session tokens and write it to session.key_file
(or --out) as a PKCS#1 PEM file readable only by the owner.

Replacing the key invalidates every session issued with the old one.

Examples:
  # Write session.pem in the current directory
  tollgate keygen

  # Write a 4096 bit key elsewhere without asking
  tollgate keygen --bits 4096 --out /etc/tollgate/session.pem --force`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

var (
	keygenBits  int
	keygenOut   string
	keygenForce bool
)

func init() {
	keygenCmd.Flags().IntVar(&keygenBits, "bits", 2048, "RSA modulus size")
	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "", "output path (default: session.key_file)")
	keygenCmd.Flags().BoolVarP(&keygenForce, "force", "f", false, "overwrite an existing key without asking")
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	path := keygenOut
	if path == "" {
		path = cfg.Session.KeyFile
	}

	if _, err := os.Stat(path); err == nil && !keygenForce {
		if err := confirm(fmt.Sprintf("%s exists. Replace it and invalidate all sessions", path)); err != nil {
			if errors.Is(err, errCancelled) {
				fmt.Println("Cancelled.")
				return nil
			}
			return err
		}
	}

	key, err := session.GenerateKey(keygenBits)
	if err != nil {
		return err
	}

	if err := session.WritePrivateKey(path, key); err != nil {
		return err
	}

	slog.Info("session key written", "path", path, "bits", keygenBits)
	return nil
}
