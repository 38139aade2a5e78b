package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"vinalytics-hq/mekong/pkg/auth"
	"vinalytics-hq/mekong/pkg/store"
)

// handleRegister creates a new account. POST /auth/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hashing password failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			writeDetail(w, http.StatusBadRequest, "Username already registered")
			return
		}
		s.logger.Error("creating user failed", "username", req.Username, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info("user registered", "username", user.Username)
	writeJSON(w, http.StatusCreated, map[string]string{
		"message":  "User registered successfully",
		"username": user.Username,
	})
}

// handleLogin verifies credentials and issues an access token.
// POST /auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.users.GetUser(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			loginFailed(w)
			return
		}
		s.logger.Error("loading user failed", "username", req.Username, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		loginFailed(w)
		return
	}

	token, _, err := s.tokens.Issue(user.Username)
	if err != nil {
		s.logger.Error("issuing token failed", "username", user.Username, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// loginFailed writes the uniform 401 for bad credentials. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func loginFailed(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
}

// handleMe returns the authenticated account's profile. GET /auth/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.Subject(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := s.users.GetUser(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// The token outlived the account.
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		s.logger.Error("loading user failed", "username", username, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"username":   user.Username,
		"email":      user.Email,
		"created_at": user.CreatedAt.UTC().Format(time.RFC3339),
	})
}
