package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sagarc03/tollgate/config"
	"github.com/sagarc03/tollgate/database"
	"github.com/sagarc03/tollgate/session"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and manage stored profiles",
	Long: `Inspect and manage profiles in the configured database.

Permission changes reach a user's session the next time they log in.`,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

var profileGrantCmd = &cobra.Command{
	Use:   "grant [flags] <id>",
	Short: "Set the permission bits of a profile",
	Long: `Replace the permission bits of a profile.

Examples:
  # Make a user an admin
  tollgate profile grant --admin 3f0c...

  # Revoke everything
  tollgate profile grant 3f0c...`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileGrant,
}

var (
	grantAdmin bool
	grantMod   bool
)

func init() {
	profileGrantCmd.Flags().BoolVar(&grantAdmin, "admin", false, "grant admin")
	profileGrantCmd.Flags().BoolVar(&grantMod, "mod", false, "grant moderator")

	profileCmd.AddCommand(profileShowCmd, profileGrantCmd)
	rootCmd.AddCommand(profileCmd)
}

func openProfiles(cmd *cobra.Command) (database.ProfileRepo, func(), error) {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	repo, closeDB, err := database.Open(cmd.Context(), cfg.Database.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("open profile store: %w", err)
	}
	return repo, closeDB, nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("profile id: %w", err)
	}

	repo, closeDB, err := openProfiles(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	p, err := repo.GetProfile(cmd.Context(), id)
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), p)
}

func runProfileGrant(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("profile id: %w", err)
	}

	var auth session.AuthFlags
	if grantAdmin {
		auth |= session.AuthAdmin
	}
	if grantMod {
		auth |= session.AuthMod
	}

	repo, closeDB, err := openProfiles(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	p, err := repo.SetAuth(cmd.Context(), id, auth)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s/%s: %q\n", p.ID, p.Provider, p.ExternalID, p.Auth.String())
	return err
}
