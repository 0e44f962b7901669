package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tidy/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the favorites and user tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			if err := a.Migrate(cmd.Context()); err != nil {
				return err
			}
			a.Logger().Info("✅ schema up to date")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
