package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tidy/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the star refresh scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			return a.Serve()
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
