package main

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Bearer token utilities",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <subject>",
	Short: "Issue a signed access token for a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenIssue,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage profiles",
}

var profileCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a profile",
	RunE:  runProfileCreate,
}

var profileTechnicianCmd = &cobra.Command{
	Use:   "set-technician <profile-id>",
	Short: "Grant or revoke the technician role",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileSetTechnician,
}

var (
	tokenRole string

	profileInput   service.ProfileInput
	technicianFlag bool
)

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleUser), "USER, TECHNICIAN or ADMIN")
	tokenCmd.AddCommand(tokenIssueCmd)

	flags := profileCreateCmd.Flags()
	flags.StringVar(&profileInput.ID, "id", "", "identity provider subject to reuse as the profile id")
	flags.StringVar(&profileInput.Username, "username", "", "unique username")
	flags.StringVar(&profileInput.Email, "email", "", "unique email")
	flags.StringVar(&profileInput.FullName, "full-name", "", "display name")
	flags.BoolVar(&profileInput.IsAdmin, "admin", false, "grant administrator rights")
	_ = profileCreateCmd.MarkFlagRequired("username")
	_ = profileCreateCmd.MarkFlagRequired("email")

	profileTechnicianCmd.Flags().BoolVar(&technicianFlag, "enabled", true, "enable or disable the technician role")

	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileTechnicianCmd)
}

func runTokenIssue(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	token, expiresAt, err := tokens.IssueToken(domain.Identity{ActorID: args[0], Role: domain.Role(tokenRole)})
	if err != nil {
		return err
	}
	cmd.Println(token)
	cmd.PrintErrf("expires at %s\n", expiresAt.UTC().Format("2006-01-02T15:04:05Z"))
	return nil
}

func runProfileCreate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), bootstrapOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	profile, err := a.profiles.CreateProfile(cmd.Context(), profileInput)
	if err != nil {
		return err
	}
	cmd.Printf("created profile %s (%s)\n", profile.ID, profile.Username)
	return nil
}

func runProfileSetTechnician(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), bootstrapOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	profile, err := a.profiles.SetTechnicianFlag(cmd.Context(), a.operator(), args[0], technicianFlag)
	if err != nil {
		return err
	}
	cmd.Printf("profile %s technician=%t\n", profile.ID, profile.IsTechnician)
	return nil
}
