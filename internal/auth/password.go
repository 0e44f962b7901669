package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/tidy/internal/domain"
	"github.com/MrSnakeDoc/tidy/internal/store/sqlstore"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the user does not exist so unknown
// usernames take as long as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("tidy-no-such-user"), bcrypt.DefaultCost)

// HashPassword returns a bcrypt hash for storage in fav_user.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// UserFinder looks users up by name. sqlstore.UserStore implements it.
type UserFinder interface {
	FindUser(ctx context.Context, username string) (*domain.User, error)
}

// Session is the result of a successful login.
type Session struct {
	UserID   int64
	Username string
	Token    string
	Claims   *Claims
}

// Authenticator checks credentials and issues sessions.
type Authenticator struct {
	users   UserFinder
	manager *Manager
}

func NewAuthenticator(users UserFinder, manager *Manager) *Authenticator {
	return &Authenticator{users: users, manager: manager}
}

// Login verifies the password and issues a session token.
// Unknown user and wrong password both yield ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := a.users.FindUser(ctx, username)
	if err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, claims, err := a.manager.Issue(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &Session{UserID: user.ID, Username: user.Username, Token: token, Claims: claims}, nil
}
