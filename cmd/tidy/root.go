package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tidy/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "tidy",
	Short: "Self-hosted favorites manager with weekly GitHub star refresh.",
	Long: `tidy serves a favorites API backed by MySQL or SQLite and keeps the
rating of GitHub projects in sync with their stargazer count.

Configuration comes from TIDY_* environment variables.`,
	SilenceUsage: true,
	// "tidy" alone behaves like "tidy serve"
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// withApp opens the shared resources, runs fn and releases them.
func withApp(fn func(a *app.App) error) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
