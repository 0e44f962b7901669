package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFavoriteNormalize(t *testing.T) {
	f := Favorite{Name: "  chi ", URL: " https://github.com/go-chi/chi ", Description: "router", Keywords: "http,mux", Rating: -3}
	f.Normalize()

	assert.Equal(t, "chi", f.Name)
	assert.Equal(t, "https://github.com/go-chi/chi", f.URL)
	assert.Equal(t, DefaultCategory, f.Category)
	assert.Equal(t, 0, f.Rating)
	assert.Equal(t, "chi router http,mux", f.SearchTokens)
	assert.NoError(t, f.Validate())
}

func TestFavoriteValidate(t *testing.T) {
	assert.ErrorIs(t, (&Favorite{Name: "x"}).Validate(), ErrMissingRequired)
	assert.ErrorIs(t, (&Favorite{URL: "https://x"}).Validate(), ErrMissingRequired)
}

func TestFilterValidate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{name: "defaults", filter: Filter{Page: 1, PageSize: DefaultPageSize}},
		{name: "max page size", filter: Filter{Page: 3, PageSize: MaxPageSize}},
		{name: "page zero", filter: Filter{Page: 0, PageSize: 10}, wantErr: true},
		{name: "page size too big", filter: Filter{Page: 1, PageSize: 101}, wantErr: true},
		{name: "page size zero", filter: Filter{Page: 1, PageSize: 0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPage)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Equal(t, 20, Filter{Page: 3, PageSize: 10}.Offset())
	assert.Equal(t, 3, TotalPages(21, 10))
	assert.Equal(t, 0, TotalPages(0, 10))
}

func TestNewPatch(t *testing.T) {
	p, err := NewPatch(map[string]any{
		"id":           float64(7),
		"project_name": "chi",
		"rating":       float64(4),
		"is_public":    float64(1),
		"tags":         nil,
	}, "id")
	require.NoError(t, err)
	assert.Equal(t, Patch{
		"project_name": "chi",
		"rating":       int64(4),
		"is_public":    true,
		"tags":         "",
	}, p)
	assert.True(t, p.TouchesSearchTokens())

	tests := []struct {
		name string
		raw  map[string]any
	}{
		{name: "unknown column", raw: map[string]any{"created_at": "now"}},
		{name: "injection attempt", raw: map[string]any{"rating = 0; DROP TABLE fav_favorites; --": 1.0}},
		{name: "empty", raw: map[string]any{}},
		{name: "only ignored keys", raw: map[string]any{"id": 1.0}},
		{name: "negative rating", raw: map[string]any{"rating": -1.0}},
		{name: "fractional rating", raw: map[string]any{"rating": 1.5}},
		{name: "string rating", raw: map[string]any{"rating": "5"}},
		{name: "bad flag", raw: map[string]any{"is_public": 2.0}},
		{name: "blank name", raw: map[string]any{"project_name": "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPatch(tt.raw, "id")
			assert.Error(t, err)
		})
	}
}

func TestPatchApply(t *testing.T) {
	p, err := NewPatch(map[string]any{
		"project_name": "zap",
		"project_url":  "https://github.com/uber-go/zap",
		"tags":         "logging",
		"rating":       float64(4),
		"is_public":    float64(1),
	}, "id")
	require.NoError(t, err)

	f := Favorite{Description: "kept"}
	p.Apply(&f)

	assert.Equal(t, "zap", f.Name)
	assert.Equal(t, "https://github.com/uber-go/zap", f.URL)
	assert.Equal(t, "logging", f.Tags)
	assert.Equal(t, "kept", f.Description)
	assert.Equal(t, 4, f.Rating)
	assert.True(t, f.IsPublic)
}
