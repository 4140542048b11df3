package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-app/inkwell/internal/platform/httpx"
)

// DefaultCookieName is the cookie carrying the session token.
const DefaultCookieName = "sessionId"

// CookieConfig controls the session cookie. MaxAge must match the session store TTL.
type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger  *slog.Logger
	service *Service
	cookie  CookieConfig
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, cookie CookieConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = DefaultSessionTTL
	}
	return &Handler{logger: logger, service: service, cookie: cookie}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	h.mount(r)
}

// ThrottledRoutes returns a mount function that wraps only login and register
// with the given middlewares. /me and /logout always stay reachable.
func (h *Handler) ThrottledRoutes(middlewares ...func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		h.mount(r, middlewares...)
	}
}

func (h *Handler) mount(r chi.Router, credentialMiddlewares ...func(http.Handler) http.Handler) {
	r.Get("/me", h.me)
	r.Post("/logout", h.logout)
	r.Group(func(r chi.Router) {
		r.Use(credentialMiddlewares...)
		r.Post("/login", h.login)
		r.Post("/register", h.register)
	})
}

// MountProtected registers the routes behind RequireAuth.
func (h *Handler) MountProtected(r chi.Router) {
	r.Use(h.RequireAuth)
	r.Get("/profile", h.profile)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	User    PublicUser `json:"user"`
	Success bool       `json:"success"`
}

type meResponse struct {
	User          *PublicUser `json:"user"`
	Authenticated bool        `json:"authenticated"`
}

type profileResponse struct {
	User    PublicUser   `json:"user"`
	Session sessionTimes `json:"session"`
}

type sessionTimes struct {
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	token := h.token(r)
	if token == "" {
		httpx.JSON(w, http.StatusOK, meResponse{})
		return
	}
	data, err := h.service.Authenticate(r.Context(), token)
	if err != nil {
		// The cookie may still be valid once the store recovers.
		h.logger.Warn("resolve session", slog.Any("error", err))
		httpx.JSON(w, http.StatusOK, meResponse{})
		return
	}
	if data == nil {
		h.clearCookie(w)
		httpx.JSON(w, http.StatusOK, meResponse{})
		return
	}
	user := data.User.Public()
	httpx.JSON(w, http.StatusOK, meResponse{User: &user, Authenticated: true})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, "login", h.service.Login)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, "register", h.service.Register)
}

type credentialFlow func(ctx context.Context, username, password string) (*Result, error)

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, action string, flow credentialFlow) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, action, err)
		return
	}
	result, err := flow(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(w, action, err)
		return
	}
	h.setCookie(w, result.SessionID)
	httpx.JSON(w, http.StatusOK, userResponse{User: result.User, Success: true})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := h.token(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
	}
	h.clearCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	sess := SessionFromContext(r.Context())
	if user == nil || sess == nil {
		httpx.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	httpx.JSON(w, http.StatusOK, profileResponse{
		User:    *user,
		Session: sessionTimes{ExpiresAt: sess.ExpiresAt, CreatedAt: sess.CreatedAt},
	})
}

// RequireAuth rejects requests without a valid session cookie.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.token(r)
		if token == "" {
			httpx.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		data, err := h.service.Authenticate(r.Context(), token)
		if err != nil {
			h.logger.Error("authenticate session", slog.Any("error", err))
			httpx.InternalError(w)
			return
		}
		if data == nil {
			h.clearCookie(w)
			httpx.Error(w, http.StatusUnauthorized, "invalid session")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), data)))
	})
}

func (h *Handler) token(r *http.Request) string {
	cookie, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *Handler) setCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrWeakPassword), errors.Is(err, ErrPasswordTooLong):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, httpx.ErrBadBody):
		httpx.Error(w, http.StatusBadRequest, httpx.ErrBadBody.Error())
	case errors.Is(err, ErrDuplicateUser):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Error(w, http.StatusUnauthorized, err.Error())
	default:
		h.logger.Error(action+" failed", slog.Any("error", err))
		httpx.InternalError(w)
	}
}
