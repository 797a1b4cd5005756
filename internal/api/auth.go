package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/snaptastic/snaptastic/internal/models"
	"github.com/snaptastic/snaptastic/internal/repository"
	"github.com/snaptastic/snaptastic/internal/service"
)

type contextKey string

const userContextKey contextKey = "user"

// sessionCookieName is the cookie carrying the session token.
const sessionCookieName = "session"

// sessionMiddleware resolves the session cookie to a user and rejects the
// request with 401 otherwise.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			s.unauthorized(w)
			return
		}

		user, err := s.users.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			s.internalError(w, "Failed to authenticate", err)
			return
		}
		if user == nil {
			s.unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.badRequest(w, "email and password are required")
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			s.badRequest(w, "email already registered")
			return
		}
		s.internalError(w, "Failed to register", err)
		return
	}

	_, token, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.internalError(w, "Failed to create session", err)
		return
	}

	s.setSessionCookie(w, token)
	s.writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}

	user, token, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			s.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid email or password"})
			return
		}
		s.internalError(w, "Failed to login", err)
		return
	}

	s.setSessionCookie(w, token)
	s.writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := s.users.Logout(r.Context(), cookie.Value); err != nil {
			s.log.Error("logout", "err", err)
		}
	}
	s.clearSessionCookie(w)
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.users.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
