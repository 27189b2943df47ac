package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrikonek/internal/config"
	"agrikonek/internal/domain"
	"agrikonek/internal/service"
	"agrikonek/internal/store"
)

// Claims bearer token payload; Subject is the user id
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

var errTokenExpired = errors.New("token expired")

// Authenticator issues and verifies HS256 bearer tokens
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer, ttl: ttl, now: time.Now}
}

// Issue signs a token for userID with the given role
func (a *Authenticator) Issue(userID string, role domain.Role) (string, error) {
	if userID == "" || !role.Valid() {
		return "", fmt.Errorf("%w: user id and a known role are required", domain.ErrInvalidArgument)
	}
	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies raw and returns the session it carries
func (a *Authenticator) Parse(raw string) (domain.Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return domain.Session{}, errTokenExpired
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if !claims.VerifyIssuer(a.issuer, true) || claims.Subject == "" || !claims.Role.Valid() {
		return domain.Session{}, fmt.Errorf("%w: bad claims", domain.ErrUnauthorized)
	}
	return domain.Session{UserID: claims.Subject, Role: claims.Role}, nil
}

// Middleware puts the bearer token's session into the request context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeJSON(w, http.StatusUnauthorized, Fail("missing bearer token"))
			return
		}
		sess, err := a.Parse(strings.TrimSpace(raw))
		if errors.Is(err, errTokenExpired) {
			writeJSON(w, http.StatusUnauthorized, Result[any]{Code: ResultTokenExpired, Type: "error", Message: "token expired"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, Fail("invalid token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(domain.WithSession(r.Context(), sess)))
	})
}

// Provision creates the caller's profile on first authenticated use; runs after the Authenticator
func Provision(profiles service.ProfileService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := profiles.Provision(r.Context()); err != nil {
				writeError(w, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout bounds every request's context
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// recorder captures the status and, when asked, the body written downstream
type recorder struct {
	http.ResponseWriter
	status int
	keep   bool
	body   bytes.Buffer
}

func (rec *recorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *recorder) Write(b []byte) (int, error) {
	if rec.keep {
		rec.body.Write(b)
	}
	return rec.ResponseWriter.Write(b)
}

// AccessLog one line per request
func AccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("elapsed", time.Since(start)),
			}
			if s, ok := domain.SessionFrom(r.Context()); ok {
				fields = append(fields, zap.String("user_id", s.UserID))
			}
			if rec.status >= 500 {
				logger.Warn("HTTP request", fields...)
				return
			}
			logger.Debug("HTTP request", fields...)
		})
	}
}

const maxIdempotencyKey = 128

// Idempotent makes POSTs carrying an Idempotency-Key safe to retry.
// Keys are scoped per user and path; 5xx responses release the key.
func Idempotent(idem *store.Idempotency, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKey {
				writeJSON(w, http.StatusBadRequest, Fail("Idempotency-Key too long"))
				return
			}
			scope := r.URL.Path
			if s, ok := domain.SessionFrom(r.Context()); ok {
				scope = s.UserID + ":" + scope
			}

			replay, err := idem.Begin(r.Context(), scope, key)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			if replay != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(replay.Status)
				_, _ = w.Write(replay.Body)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK, keep: true}
			next.ServeHTTP(rec, r)

			ctx := context.WithoutCancel(r.Context())
			if rec.status >= 500 {
				if err := idem.Abort(ctx, scope, key); err != nil {
					logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
				}
				return
			}
			if err := idem.Complete(ctx, scope, key, rec.status, rec.body.Bytes()); err != nil {
				logger.Warn("Failed to store idempotent response", zap.String("key", key), zap.Error(err))
				_ = idem.Abort(ctx, scope, key)
			}
		})
	}
}
