package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/tidy/internal/domain"
)

const favoriteColumns = `id, project_name, project_url,
	COALESCE(project_description, ''), COALESCE(keywords, ''), COALESCE(search_tokens, ''),
	COALESCE(category, ''), COALESCE(rating, 0), COALESCE(is_public, 0),
	COALESCE(tags, ''), COALESCE(favicon_url, ''), COALESCE(screenshot_url, ''),
	created_at, updated_at`

// FavoriteStore handles fav_favorites rows. The pool is owned by the caller.
type FavoriteStore struct {
	db *sql.DB
}

func NewFavoriteStore(db *sql.DB) *FavoriteStore {
	return &FavoriteStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFavorite(row rowScanner) (*domain.Favorite, error) {
	var (
		f        domain.Favorite
		isPublic int64
		created  dbTime
		updated  dbTime
	)
	if err := row.Scan(
		&f.ID, &f.Name, &f.URL,
		&f.Description, &f.Keywords, &f.SearchTokens,
		&f.Category, &f.Rating, &isPublic,
		&f.Tags, &f.FaviconURL, &f.ScreenshotURL,
		&created, &updated,
	); err != nil {
		return nil, err
	}
	f.IsPublic = isPublic != 0
	f.CreatedAt = created.Time
	f.UpdatedAt = updated.Time
	return &f, nil
}

func whereClause(filter domain.Filter) (string, []any) {
	conds := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if !filter.IncludePrivate {
		conds = append(conds, "is_public = 1")
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + term + "%"
		conds = append(conds, "(project_name LIKE ? OR keywords LIKE ? OR project_description LIKE ? OR tags LIKE ?)")
		args = append(args, like, like, like, like)
	}
	if cat := strings.TrimSpace(filter.Category); cat != "" {
		conds = append(conds, "category = ?")
		args = append(args, cat)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of favorites and the total number of matching rows.
func (s *FavoriteStore) List(ctx context.Context, filter domain.Filter) ([]domain.Favorite, int, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	where, args := whereClause(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fav_favorites"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count favorites: %w", err)
	}

	query := "SELECT " + favoriteColumns + " FROM fav_favorites" + where +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, filter.PageSize, filter.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	list := make([]domain.Favorite, 0, filter.PageSize)
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan favorite: %w", err)
		}
		list = append(list, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list favorites: %w", err)
	}
	return list, total, nil
}

// Categories returns the distinct non-empty categories, sorted by name.
// Anonymous callers only see categories that hold a public favorite.
func (s *FavoriteStore) Categories(ctx context.Context, includePrivate bool) ([]string, error) {
	query := "SELECT DISTINCT category FROM fav_favorites WHERE category IS NOT NULL AND category <> ''"
	if !includePrivate {
		query += " AND is_public = 1"
	}
	query += " ORDER BY category"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	cats := make([]string, 0, 16)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return cats, nil
}

// Get returns one favorite or ErrNotFound.
func (s *FavoriteStore) Get(ctx context.Context, id int64) (*domain.Favorite, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+favoriteColumns+" FROM fav_favorites WHERE id = ?", id)
	f, err := scanFavorite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get favorite %d: %w", id, err)
	}
	return f, nil
}

// FindByURL returns the first favorite with exactly this URL or ErrNotFound.
func (s *FavoriteStore) FindByURL(ctx context.Context, url string) (*domain.Favorite, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+favoriteColumns+" FROM fav_favorites WHERE project_url = ? ORDER BY id LIMIT 1", url)
	f, err := scanFavorite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find favorite by url: %w", err)
	}
	return f, nil
}

// Create inserts a favorite and returns the stored row.
func (s *FavoriteStore) Create(ctx context.Context, f domain.Favorite) (*domain.Favorite, error) {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO fav_favorites
		(project_name, project_url, project_description, keywords, search_tokens,
		 category, rating, is_public, tags, favicon_url, screenshot_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, f.URL, f.Description, f.Keywords, f.SearchTokens,
		f.Category, f.Rating, boolInt(f.IsPublic), f.Tags, f.FaviconURL, f.ScreenshotURL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert favorite: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return s.Get(ctx, id)
}

// Update applies a validated patch. Column names only ever come from the
// patch whitelist; values are always bound.
func (s *FavoriteStore) Update(ctx context.Context, id int64, patch domain.Patch) (*domain.Favorite, error) {
	if len(patch) == 0 {
		return nil, domain.ErrEmptyPatch
	}

	cols := make([]string, 0, len(patch))
	for col := range patch {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		v := patch[col]
		if b, ok := v.(bool); ok {
			v = boolInt(b)
		}
		args = append(args, v)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, "UPDATE fav_favorites SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update favorite %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.TouchesSearchTokens() {
		f.SearchTokens = domain.BuildSearchTokens(f.Name, f.Description, f.Keywords)
		if _, err := s.db.ExecContext(ctx,
			"UPDATE fav_favorites SET search_tokens = ? WHERE id = ?", f.SearchTokens, id); err != nil {
			return nil, fmt.Errorf("failed to refresh search tokens of %d: %w", id, err)
		}
	}
	return f, nil
}

// Delete removes a favorite; ErrNotFound when nothing was deleted.
func (s *FavoriteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM fav_favorites WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete favorite %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete favorite %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByURLPrefix returns id and project_url of every favorite whose URL
// starts with prefix. Other fields are left zero.
func (s *FavoriteStore) ListByURLPrefix(ctx context.Context, prefix string) ([]domain.Favorite, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, project_url FROM fav_favorites WHERE project_url LIKE ? ORDER BY id", prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites by url prefix: %w", err)
	}
	defer rows.Close()

	favs := make([]domain.Favorite, 0, 64)
	for rows.Next() {
		var f domain.Favorite
		if err := rows.Scan(&f.ID, &f.URL); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favs = append(favs, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query favorites by url prefix: %w", err)
	}
	return favs, nil
}

// UpdateRating sets the rating of one favorite and returns the affected row count.
func (s *FavoriteStore) UpdateRating(ctx context.Context, id int64, value int) (int64, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE fav_favorites SET rating = ? WHERE id = ?", value, id)
	if err != nil {
		return 0, fmt.Errorf("failed to update rating of %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to update rating of %d: %w", id, err)
	}
	return n, nil
}

// Ping reports whether the database answers.
func (s *FavoriteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
