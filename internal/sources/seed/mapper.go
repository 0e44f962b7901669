package seed

import (
	"slices"
	"strings"

	"github.com/MrSnakeDoc/tidy/internal/domain"
)

// Map flattens a seed file into favorites, in file order. Entries without a
// URL are dropped; the second return value counts them.
func Map(file File) ([]domain.Favorite, int) {
	var (
		favs    []domain.Favorite
		skipped int
	)
	for _, group := range file {
		for _, category := range sortedKeys(group) {
			for _, item := range group[category] {
				for _, name := range sortedKeys(item) {
					entry := item[name]
					if strings.TrimSpace(entry.URL) == "" {
						skipped++
						continue
					}
					favs = append(favs, domain.Favorite{
						Name:          name,
						URL:           entry.URL,
						Description:   entry.Description,
						Keywords:      entry.Keywords,
						Tags:          entry.Tags,
						Category:      category,
						Rating:        entry.Rating,
						IsPublic:      entry.Public,
						FaviconURL:    entry.Favicon,
						ScreenshotURL: entry.Screenshot,
					})
				}
			}
		}
	}
	return favs, skipped
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
