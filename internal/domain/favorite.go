package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

const DefaultCategory = "Other"

// Favorite is one bookmarked project.
type Favorite struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is assigned by the store on creation.
	ID int64 `json:"id"`

	// ─────────────────────────────
	// Functional description
	// ─────────────────────────────

	Name        string `json:"project_name"`
	URL         string `json:"project_url"`
	Description string `json:"project_description"`

	// Keywords and Tags are comma separated.
	Keywords string `json:"keywords"`
	Tags     string `json:"tags"`

	// SearchTokens is derived from Name, Description and Keywords.
	SearchTokens string `json:"search_tokens"`

	Category string `json:"category"`

	// Rating holds the user score (0-5) until the star refresh overwrites it
	// with the repository's stargazer count.
	Rating int `json:"rating"`

	// IsPublic rows are visible to anonymous callers.
	IsPublic bool `json:"is_public"`

	FaviconURL    string `json:"favicon_url"`
	ScreenshotURL string `json:"screenshot_url"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an account allowed to sign in.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Remark       string
}

// BuildSearchTokens joins the searchable text of a favorite.
func BuildSearchTokens(name, description, keywords string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{name, description, keywords} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Normalize trims text fields and applies defaults before a create.
func (f *Favorite) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.URL = strings.TrimSpace(f.URL)
	f.Category = strings.TrimSpace(f.Category)
	if f.Category == "" {
		f.Category = DefaultCategory
	}
	if f.Rating < 0 {
		f.Rating = 0
	}
	f.SearchTokens = BuildSearchTokens(f.Name, f.Description, f.Keywords)
}

// Validate checks the fields required on create.
func (f *Favorite) Validate() error {
	if f.Name == "" || f.URL == "" {
		return ErrMissingRequired
	}
	return nil
}

// Filter narrows a favorites listing.
type Filter struct {
	Page           int
	PageSize       int
	Search         string
	Category       string
	IncludePrivate bool // false => only is_public rows
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var (
	ErrMissingRequired = errors.New("project_name and project_url are required")
	ErrInvalidPage     = errors.New("page must be >= 1 and pageSize between 1 and 100")
	ErrEmptyPatch      = errors.New("no fields to update")
)

// Offset returns the row offset of the requested page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Validate rejects out-of-range paging.
func (f Filter) Validate() error {
	if f.Page < 1 || f.PageSize < 1 || f.PageSize > MaxPageSize {
		return ErrInvalidPage
	}
	return nil
}

// TotalPages is ceil(total / pageSize).
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Patch is a validated partial update keyed by column name.
type Patch map[string]any

// patchable lists the columns a client may set and how to coerce them.
var patchable = map[string]func(any) (any, error){
	"project_name":        asText,
	"project_url":         asText,
	"project_description": asText,
	"keywords":            asText,
	"category":            asText,
	"tags":                asText,
	"favicon_url":         asText,
	"screenshot_url":      asText,
	"rating":              asRating,
	"is_public":           asFlag,
}

// NewPatch validates a decoded JSON object against the patchable columns.
// Keys listed in ignore (e.g. "id") are dropped silently.
func NewPatch(raw map[string]any, ignore ...string) (Patch, error) {
	p := make(Patch, len(raw))
	for k, v := range raw {
		if slices.Contains(ignore, k) {
			continue
		}
		coerce, ok := patchable[k]
		if !ok {
			return nil, fmt.Errorf("field %q cannot be updated", k)
		}
		val, err := coerce(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		p[k] = val
	}
	if len(p) == 0 {
		return nil, ErrEmptyPatch
	}
	if name, ok := p["project_name"].(string); ok && strings.TrimSpace(name) == "" {
		return nil, ErrMissingRequired
	}
	if u, ok := p["project_url"].(string); ok && strings.TrimSpace(u) == "" {
		return nil, ErrMissingRequired
	}
	return p, nil
}

// TouchesSearchTokens reports whether the patch changes text that feeds
// SearchTokens.
func (p Patch) TouchesSearchTokens() bool {
	for _, k := range []string{"project_name", "project_description", "keywords"} {
		if _, ok := p[k]; ok {
			return true
		}
	}
	return false
}

// Apply copies the patched values onto f.
func (p Patch) Apply(f *Favorite) {
	text := map[string]*string{
		"project_name":        &f.Name,
		"project_url":         &f.URL,
		"project_description": &f.Description,
		"keywords":            &f.Keywords,
		"category":            &f.Category,
		"tags":                &f.Tags,
		"favicon_url":         &f.FaviconURL,
		"screenshot_url":      &f.ScreenshotURL,
	}
	for k, v := range p {
		if dst, ok := text[k]; ok {
			*dst = v.(string)
			continue
		}
		switch k {
		case "rating":
			f.Rating = int(v.(int64))
		case "is_public":
			f.IsPublic = v.(bool)
		}
	}
}

func asText(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	default:
		return nil, errors.New("expected a string")
	}
}

func asRating(v any) (any, error) {
	n, ok := v.(float64)
	if !ok || n < 0 || n != math.Trunc(n) || n > math.MaxUint32 {
		return nil, errors.New("expected a non-negative integer")
	}
	return int64(n), nil
}

func asFlag(v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case float64:
		if b == 0 || b == 1 {
			return b == 1, nil
		}
	}
	return nil, errors.New("expected a boolean")
}
