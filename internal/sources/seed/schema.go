package seed

// File is the root of a seed file: a list of categories, each holding a list
// of single-key maps from project name to Entry.
//
//	# favorites.yaml
//	- Web:
//	    - chi:
//	        url: https://github.com/go-chi/chi
//	        keywords: http,router
type File []map[string][]map[string]Entry

// Entry holds one favorite's properties
type Entry struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description,omitempty"`
	Keywords    string `yaml:"keywords,omitempty"`
	Tags        string `yaml:"tags,omitempty"`
	Rating      int    `yaml:"rating,omitempty"`
	Public      bool   `yaml:"public,omitempty"`
	Favicon     string `yaml:"favicon,omitempty"`
	Screenshot  string `yaml:"screenshot,omitempty"`
}
