package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"melobot/internal/domain"
)

type ctxKey string

const ctxKeyUsername ctxKey = "username"

// HashPassword returns the hex SHA-256 of a password, the format stored in
// the settings and users tables.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func hashMatches(password, storedHash string) bool {
	got := HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}

// requireAdmin guards admin routes with HTTP Basic auth. The password hash
// is re-read from the settings table on each request so the seed command
// takes effect without a restart; the config hash is the fallback.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storedHash := s.cfg.Auth.PasswordHash
		if s.settings != nil {
			if h, err := s.settings.GetSetting(r.Context(), domain.SettingAdminPasswordHash); err != nil {
				s.logger.Warn("cannot read admin password hash", "err", err)
			} else if h != "" {
				storedHash = h
			}
		}
		if storedHash == "" {
			// No admin credential configured; the route stays open. The seed
			// command closes it.
			next(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.Auth.Username)) != 1 ||
			!hashMatches(pass, storedHash) {
			w.Header().Set("WWW-Authenticate", `Basic realm="melobot admin"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Não autorizado."})
			return
		}
		next(w, r)
	}
}

// requireUser guards per-user routes with HTTP Basic auth against the users
// table and stores the username in the request context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="melobot"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Não autorizado."})
			return
		}
		user, err := s.users.GetUser(r.Context(), username)
		if err != nil {
			s.logger.Error("user lookup failed", "user", username, "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erro interno."})
			return
		}
		if user == nil || !hashMatches(pass, user.PasswordHash) {
			w.Header().Set("WWW-Authenticate", `Basic realm="melobot"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Usuário ou senha incorretos."})
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUsername, username)
		next(w, r.WithContext(ctx))
	}
}

// authenticatedUser returns the username when the request carries valid user
// credentials, and "" otherwise. Used by /chat where auth is optional.
func (s *Server) authenticatedUser(r *http.Request) string {
	username, pass, ok := r.BasicAuth()
	if !ok || s.users == nil {
		return ""
	}
	user, err := s.users.GetUser(r.Context(), username)
	if err != nil || user == nil {
		return ""
	}
	if !hashMatches(pass, user.PasswordHash) {
		return ""
	}
	return username
}

func usernameFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUsername).(string)
	return v
}
