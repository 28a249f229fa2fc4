package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/reelsmith/reelsmith/internal/auth"
	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/repository"
)

type principalKey struct{}
type sessionHashKey struct{}
type clientIPKey struct{}

// Principal returns the authenticated principal ID, or "".
func Principal(ctx context.Context) string {
	if p, ok := ctx.Value(principalKey{}).(string); ok {
		return p
	}
	return ""
}

// SessionTokenHash returns the hash of the session token presented on this
// request, valid or not. Used by logout to revoke the right row.
func SessionTokenHash(ctx context.Context) string {
	if h, ok := ctx.Value(sessionHashKey{}).(string); ok {
		return h
	}
	return ""
}

// RequestClientIP returns the resolved client address for rate limiting.
func RequestClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// Authenticator resolves the session cookie into a principal and enforces
// the configured authentication requirements on API routes.
type Authenticator struct {
	cfg      config.AuthConfig
	secrets  *auth.Secrets
	sessions *repository.SessionRepository
	logger   *slog.Logger

	trustedProxies []string
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(cfg config.AuthConfig, secrets *auth.Secrets, sessions *repository.SessionRepository, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{
		cfg:            cfg,
		secrets:        secrets,
		sessions:       sessions,
		logger:         log,
		trustedProxies: cfg.TrustedProxyList(),
	}
}

// CookieName returns the configured session cookie name.
func (a *Authenticator) CookieName() string {
	if a.cfg.SessionCookieName != "" {
		return a.cfg.SessionCookieName
	}
	return "reelsmith_session"
}

// Middleware returns the authentication middleware. It always resolves the
// client IP and any presented session; enforcement applies only to API
// routes outside /api/auth/ when auth is enabled.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := auth.ClientIP(r, a.cfg.TrustProxyHeaders, a.trustedProxies)
			ctx = context.WithValue(ctx, clientIPKey{}, ip)

			if cookie, err := r.Cookie(a.CookieName()); err == nil && cookie.Value != "" {
				hash := a.secrets.HashSessionToken(cookie.Value)
				ctx = context.WithValue(ctx, sessionHashKey{}, hash)

				session, err := a.sessions.GetActiveByTokenHash(ctx, hash)
				if err != nil {
					a.logger.Warn("session lookup failed", slog.String("error", err.Error()))
				} else if session != nil && session.Active(time.Now()) {
					ctx = context.WithValue(ctx, principalKey{}, session.PrincipalID)
					// Best effort; a miss only skews the last-seen timestamp.
					_ = a.sessions.TouchLastSeen(ctx, session.ID, time.Now())
				}
			}

			r = r.WithContext(ctx)

			if a.required(r) && Principal(ctx) == "" {
				WriteDetail(w, http.StatusUnauthorized, "AUTH_REQUIRED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// required reports whether the request must carry a valid session.
func (a *Authenticator) required(r *http.Request) bool {
	if !a.cfg.Enabled {
		return false
	}
	path := r.URL.Path
	if path == "/health" || strings.HasPrefix(path, "/api/auth/") {
		return false
	}
	if !strings.HasPrefix(path, "/api/") {
		return false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return a.cfg.RequireForReads
	default:
		return a.cfg.RequireForWrites
	}
}
