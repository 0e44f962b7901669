package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tidy/internal/app"
	"github.com/MrSnakeDoc/tidy/internal/auth"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts allowed to sign in",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user with a bcrypt-hashed password",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		remark, _ := cmd.Flags().GetString("remark")

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		return withApp(func(a *app.App) error {
			id, err := a.Users.CreateUser(cmd.Context(), username, hash, remark)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %q created (id %d)\n", username, id)
			return nil
		})
	},
}

func init() {
	userCreateCmd.Flags().String("username", "", "login name")
	userCreateCmd.Flags().String("password", "", "plain-text password, stored as a bcrypt hash")
	userCreateCmd.Flags().String("remark", "", "free-form note")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}
