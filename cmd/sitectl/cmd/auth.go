package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psantana5/sitesync/pkg/config"
	"github.com/psantana5/sitesync/pkg/models"
)

var (
	authEmail    string
	authPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and remember the session user",
	Long:  `Exchange email and password for a user id and store it as user_id in the config file.`,
	RunE:  runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE:  runRegister,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)

	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "account email")
		c.Flags().StringVar(&authPassword, "password", "", "account password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		user, err := s.orch.Login(ctx, authEmail, authPassword)
		if err != nil {
			return err
		}
		return rememberUser(s.cfg, user)
	})
}

func runRegister(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		user, err := s.orch.Register(ctx, authEmail, authPassword)
		if err != nil {
			return err
		}
		return rememberUser(s.cfg, user)
	})
}

func rememberUser(cfg config.Config, user models.User) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	cfg.UserID = user.ID
	if err := config.WriteFile(path, cfg, true); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(user)
	}
	fmt.Fprintf(stdout, "Logged in as %s (%s)\n", user.Email, user.ID)
	fmt.Fprintf(stdout, "Session saved to %s\n", path)
	return nil
}
