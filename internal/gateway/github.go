// Package gateway provides access to the GitHub API, hiding the underlying
// REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/MrSnakeDoc/tidy/internal/domain"
	"github.com/MrSnakeDoc/tidy/internal/logger"
	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

var ErrRepositoryNotFound = errors.New("repository not found")

// StarBatch is the outcome of one aggregate stargazer query.
type StarBatch struct {
	// Stars maps favorite id to stargazer count. Repositories that resolved
	// to null are absent.
	Stars map[int64]int

	// FieldErrors carries per-field GraphQL errors returned next to data.
	FieldErrors error
}

// RepositoryInfo is the subset of repository metadata used to prefill a favorite.
type RepositoryInfo struct {
	FullName    string   `json:"project_name"`
	Description string   `json:"project_description"`
	AvatarURL   string   `json:"favicon_url"`
	HTMLURL     string   `json:"project_url"`
	Stars       int      `json:"stars"`
	Topics      []string `json:"topics"`
}

// GitHubGateway talks to GitHub over GraphQL (star counts) and REST (lookups).
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        logger.Logger
}

// starCount is the selection of every aliased repository field.
type starCount struct {
	StargazerCount githubv4.Int
}

var starCountType = reflect.TypeOf((*starCount)(nil))

// NewGitHubGateway builds REST and GraphQL clients sharing one authenticated,
// rate-limit aware transport. graphqlURL may point at a GitHub Enterprise
// endpoint.
func NewGitHubGateway(token, graphqlURL string, log logger.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(time.Minute, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: newGraphQLClient(graphqlURL, httpClient),
		logger:        log.With(logger.Component("github")),
	}, nil
}

// buildStarQuery returns a pointer to a struct with one aliased field per
// candidate, plus the matching variables:
//
//	repo_<id>: repository(owner: $owner<id>, name: $name<id>) { stargazerCount }
func buildStarQuery(batch []domain.Candidate) (any, map[string]any) {
	fields := make([]reflect.StructField, 0, len(batch))
	vars := make(map[string]any, 2*len(batch))
	for _, c := range batch {
		id := c.FavoriteID
		fields = append(fields, reflect.StructField{
			Name: fmt.Sprintf("Repo%d", id),
			Type: starCountType,
			Tag:  reflect.StructTag(fmt.Sprintf(`graphql:"%s: repository(owner: $owner%d, name: $name%d)"`, c.Alias(), id, id)),
		})
		vars[fmt.Sprintf("owner%d", id)] = githubv4.String(c.Repo.Owner)
		vars[fmt.Sprintf("name%d", id)] = githubv4.String(c.Repo.Name)
	}
	return reflect.New(reflect.StructOf(fields)).Interface(), vars
}

// FetchStars resolves the stargazer count of every candidate in one GraphQL
// request. A returned error means the whole batch failed; per-field errors
// are reported in StarBatch.FieldErrors.
func (g *GitHubGateway) FetchStars(ctx context.Context, batch []domain.Candidate) (*StarBatch, error) {
	out := &StarBatch{Stars: make(map[int64]int, len(batch))}
	if len(batch) == 0 {
		return out, nil
	}

	q, vars := buildStarQuery(batch)
	qctx, shape := withResponseShape(ctx)
	if err := g.graphqlClient.Query(qctx, q, vars); err != nil {
		if !isFieldErrors(err, shape) {
			return nil, fmt.Errorf("failed to execute GraphQL star query: %w", err)
		}
		out.FieldErrors = err
	}

	v := reflect.ValueOf(q).Elem()
	for _, c := range batch {
		f := v.FieldByName(fmt.Sprintf("Repo%d", c.FavoriteID))
		if !f.IsValid() || f.IsNil() {
			continue
		}
		out.Stars[c.FavoriteID] = int(f.Interface().(*starCount).StargazerCount)
	}

	g.logger.Debug("fetched stargazer counts",
		logger.Int("requested", len(batch)),
		logger.Int("resolved", len(out.Stars)))
	return out, nil
}

// isFieldErrors reports whether err is the GraphQL client's error list and
// the response still carried data with every error tied to a field path.
// Document-level errors (no path, or data:null) fail the batch.
func isFieldErrors(err error, shape *responseShape) bool {
	rv := reflect.ValueOf(err)
	if rv.Kind() != reflect.Slice || rv.Len() == 0 {
		return false
	}
	return shape.fieldErrorsOnly()
}

// LookupRepository fetches repository metadata over REST.
func (g *GitHubGateway) LookupRepository(ctx context.Context, ref domain.RepositoryRef) (*RepositoryInfo, error) {
	repo, _, err := g.restClient.Repositories.Get(ctx, ref.Owner, ref.Name)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", ref, ErrRepositoryNotFound)
		}
		return nil, fmt.Errorf("failed to get repository %s: %w", ref, err)
	}

	topics := repo.Topics
	if topics == nil {
		topics = []string{}
	}
	return &RepositoryInfo{
		FullName:    repo.GetFullName(),
		Description: repo.GetDescription(),
		AvatarURL:   repo.GetOwner().GetAvatarURL(),
		HTMLURL:     repo.GetHTMLURL(),
		Stars:       repo.GetStargazersCount(),
		Topics:      topics,
	}, nil
}
