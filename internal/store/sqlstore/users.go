package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/tidy/internal/domain"
)

// UserStore handles fav_user rows.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// FindUser returns the user with this username or ErrNotFound.
func (s *UserStore) FindUser(ctx context.Context, username string) (*domain.User, error) {
	var (
		u      domain.User
		remark sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, remark FROM fav_user WHERE username = ?", username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &remark)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	u.Remark = remark.String
	return &u, nil
}

// CreateUser stores a user; ErrConflict when the username is taken.
func (s *UserStore) CreateUser(ctx context.Context, username, passwordHash, remark string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO fav_user (username, password_hash, remark) VALUES (?, ?, ?)",
		username, passwordHash, remark)
	if isDuplicate(err) {
		return 0, fmt.Errorf("user %q: %w", username, ErrConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return res.LastInsertId()
}
