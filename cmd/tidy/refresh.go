package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tidy/internal/app"
	"github.com/MrSnakeDoc/tidy/internal/refresh"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one star refresh cycle and print the report as JSON",
	Long: `Runs one star refresh cycle. Without --force the configured weekday gate
applies and the command exits successfully with a skip report on other days.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		return withApp(func(a *app.App) error {
			r, err := a.Refresher()
			if err != nil {
				return err
			}

			var rep *refresh.Report
			if force {
				rep, err = r.RunNow(cmd.Context())
			} else {
				rep, err = r.Run(cmd.Context())
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if rep != nil {
				if encErr := enc.Encode(rep); encErr != nil {
					return encErr
				}
			}
			return err
		})
	},
}

func init() {
	refreshCmd.Flags().BoolP("force", "f", false, "ignore the weekday gate")
	rootCmd.AddCommand(refreshCmd)
}
