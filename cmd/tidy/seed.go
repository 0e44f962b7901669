package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tidy/internal/app"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import favorites from a YAML file",
	Long: `Imports favorites from a YAML file shaped as a list of categories, each
mapping project names to {url, description, keywords, tags, rating, public,
favicon, screenshot}. Entries without a URL, or whose URL is already stored,
are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		return withApp(func(a *app.App) error {
			res, err := a.Seeder().ImportFile(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, already present %d, without url %d\n",
				res.Created, res.Existing, res.NoURL)
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().String("file", "", "path to the seed file")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}
