package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// GitHubURLPrefix selects refresh candidates from the store.
const GitHubURLPrefix = "https://github.com/"

// MaxBatchSize bounds the aliased fields of one GraphQL query.
const MaxBatchSize = 50

var repoPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)

// RepositoryRef identifies a GitHub repository.
type RepositoryRef struct {
	Owner string
	Name  string
}

func (r RepositoryRef) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepositoryRef extracts owner and name from a project URL.
// ok is false when the URL does not point at a repository.
func ParseRepositoryRef(rawURL string) (RepositoryRef, bool) {
	m := repoPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return RepositoryRef{}, false
	}
	name := strings.TrimSuffix(m[2], "/")
	if m[1] == "" || name == "" {
		return RepositoryRef{}, false
	}
	return RepositoryRef{Owner: m[1], Name: name}, true
}

// Candidate pairs a favorite with the repository whose stars it tracks.
type Candidate struct {
	FavoriteID int64
	Repo       RepositoryRef
}

// Alias is the GraphQL field alias used for this candidate.
func (c Candidate) Alias() string {
	return fmt.Sprintf("repo_%d", c.FavoriteID)
}

// Candidates keeps the favorites whose URL parses as a repository.
// Duplicate ids are collapsed so each alias maps to exactly one favorite.
func Candidates(favs []Favorite) []Candidate {
	out := make([]Candidate, 0, len(favs))
	seen := make(map[int64]struct{}, len(favs))
	for _, f := range favs {
		ref, ok := ParseRepositoryRef(f.URL)
		if !ok {
			continue
		}
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		out = append(out, Candidate{FavoriteID: f.ID, Repo: ref})
	}
	return out
}

// Chunk splits candidates into consecutive batches of at most size.
func Chunk(cands []Candidate, size int) [][]Candidate {
	if size <= 0 {
		size = MaxBatchSize
	}
	batches := make([][]Candidate, 0, (len(cands)+size-1)/size)
	for start := 0; start < len(cands); start += size {
		end := min(start+size, len(cands))
		batches = append(batches, cands[start:end])
	}
	return batches
}
