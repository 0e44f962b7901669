package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/tidy/internal/auth"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/respond"
	"github.com/MrSnakeDoc/tidy/internal/logger"
	"github.com/MrSnakeDoc/tidy/internal/utils"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionUser struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}

type sessionResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	User    *sessionUser `json:"user,omitempty"`
}

// Login checks credentials, sets the session cookie and returns the token.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			respond.Fail(w, http.StatusBadRequest, "request body must be a JSON object", "")
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			respond.Fail(w, http.StatusBadRequest, "username and password are required", "")
			return
		}

		sess, err := d.Auth.Login(r.Context(), req.Username, req.Password)
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			d.Logger.Warn("login failed",
				logger.String("username", req.Username),
				logger.String("ip", utils.ClientIP(r, d.TrustProxy)))
			respond.Fail(w, http.StatusUnauthorized, "invalid username or password", "")
			return
		case err != nil:
			internalError(w, d, "login error", err)
			return
		}

		auth.SetSessionCookie(w, sess.Token, d.Sessions.TTL(), d.CookieSecure)
		d.Logger.Info("login succeeded", logger.String("username", sess.Username))
		respond.JSON(w, http.StatusOK, sessionResponse{
			Success: true,
			Message: "login successful",
			User:    &sessionUser{ID: sess.UserID, Username: sess.Username, Token: sess.Token},
		})
	}
}

// Check tells the client whether its session is valid.
func Check(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.ClaimsFrom(r.Context())
		if claims == nil {
			respond.JSON(w, http.StatusUnauthorized, sessionResponse{Success: false, Message: "not authenticated"})
			return
		}
		respond.JSON(w, http.StatusOK, sessionResponse{
			Success: true,
			User:    &sessionUser{Username: claims.Username},
		})
	}
}

// Logout revokes the current token when possible and clears the cookie.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if claims := auth.ClaimsFrom(r.Context()); claims != nil {
			if err := d.Sessions.Revoke(r.Context(), claims); err != nil {
				d.Logger.Warn("failed to revoke session", logger.Error(err))
			}
			d.Logger.Info("logout", logger.String("username", claims.Username))
		}
		auth.ClearSessionCookie(w, d.CookieSecure)
		respond.OK(w, http.StatusOK, "logged out", nil)
	}
}
