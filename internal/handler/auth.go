package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const realm = `Basic realm="feedback", charset="UTF-8"`

// HashPassword returns the bcrypt hash to put in serve.password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// requireAuth checks HTTP basic credentials against the configured user and
// bcrypt hash. Without a hash every request passes.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	if h.config.PasswordHash == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok {
			h.unauthorized(w)
			return
		}
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.config.User)) == 1
		if err := bcrypt.CompareHashAndPassword([]byte(h.config.PasswordHash), []byte(password)); err != nil || !userOK {
			slog.Warn("rejected preview login", "user", user, "remote", r.RemoteAddr)
			h.unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", realm)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
