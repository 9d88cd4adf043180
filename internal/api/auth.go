package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrNoSecret is returned by IssueToken when no signing secret is set.
var ErrNoSecret = errors.New("api secret is not configured")

// operatorClaims identify whoever triggers manual sweeps.
type operatorClaims struct {
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 bearer token for subject. ttl <= 0 means the
// token never expires.
func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := operatorClaims{jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// requireOperator lets the request through only with a valid bearer token
// signed by the server secret. Without a secret the route stays open.
func (s *Server) requireOperator(next http.Handler) http.Handler {
	if len(s.secret) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			respondError(w, http.StatusUnauthorized, "missing authentication token")
			return
		}

		claims := &operatorClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			s.logger.Warn("rejected sweep trigger", zap.String("remote", r.RemoteAddr), zap.Error(err))
			respondError(w, http.StatusUnauthorized, "invalid authentication token")
			return
		}

		s.logger.Debug("sweep trigger authorized", zap.String("subject", claims.Subject))
		next.ServeHTTP(w, r)
	})
}
