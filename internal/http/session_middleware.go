package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/floodwatch/platform/internal/repository"
)

type sessionContextKey string

const contextKeySession sessionContextKey = "floodwatch-session"

// sessionCookieName is the cookie carrying the signed session token.
const sessionCookieName = "token"

// sessionInfo is the trusted identity attached to gated requests.
type sessionInfo struct {
	UserID string
	Email  string
	Name   string
}

type contextSetter interface {
	SetContext(context.Context)
}

// requireSession gates a handler behind a valid session cookie. Every failure
// branch rejects with a uniform 401 before the handler runs; the distinct
// causes (no cookie, tampered, expired) are separated in server logs only.
func (r *Router) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureSession(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureSession validates the session cookie and enriches the context with
// the resolved identity.
func (r *Router) ensureSession(w http.ResponseWriter, req *http.Request) (context.Context, sessionInfo, bool) {
	cookie, err := req.Cookie(sessionCookieName)
	if err != nil {
		r.logger.Warn("session cookie missing", "path", req.URL.Path)
		writeFailure(w, http.StatusUnauthorized, "Authentication required")
		return req.Context(), sessionInfo{}, false
	}
	user, err := r.auth.Authorize(req.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, repository.ErrUnavailable) {
			r.logger.Error("session lookup unavailable", "path", req.URL.Path, "error", err)
			writeFailure(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return req.Context(), sessionInfo{}, false
		}
		writeFailure(w, http.StatusUnauthorized, "Authentication required")
		return req.Context(), sessionInfo{}, false
	}
	info := sessionInfo{UserID: user.ID, Email: user.Email, Name: user.Name}
	ctx := context.WithValue(req.Context(), contextKeySession, info)
	return ctx, info, true
}

// sessionFromContext extracts the trusted identity from context.
func sessionFromContext(ctx context.Context) (sessionInfo, bool) {
	value := ctx.Value(contextKeySession)
	if value == nil {
		return sessionInfo{}, false
	}
	info, ok := value.(sessionInfo)
	return info, ok
}

// setSessionCookie delivers the signed token as an HTTP-only cookie. Secure
// and cross-site SameSite apply outside development.
func (r *Router) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   r.cfg.CookieDomain,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if r.cfg.Production() {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, cookie)
}

// clearSessionCookie instructs the client to drop the session cookie.
func (r *Router) clearSessionCookie(w http.ResponseWriter) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   r.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if r.cfg.Production() {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, cookie)
}
