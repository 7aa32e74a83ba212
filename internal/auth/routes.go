package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware is an interface for HTTP middleware
type Middleware func(http.Handler) http.Handler

// RouteMiddleware groups the middleware applied to auth routes.
type RouteMiddleware struct {
	// Authenticate rejects requests without a valid, unrevoked bearer token.
	Authenticate Middleware
	// RateLimit throttles credential endpoints. May be nil.
	RateLimit Middleware
}

func passthrough(next http.Handler) http.Handler { return next }

// RegisterRoutes registers all authentication routes on r, which is expected
// to be mounted at /users.
func RegisterRoutes(r chi.Router, handler *AuthHandler, mw RouteMiddleware) {
	rateLimit := mw.RateLimit
	if rateLimit == nil {
		rateLimit = passthrough
	}

	r.Get("/verify-email", handler.VerifyEmail)
	r.Post("/verify-email", handler.VerifyEmail)
	r.Post("/refresh", handler.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(rateLimit)
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)
		r.Post("/resend-verification-email", handler.ResendVerification)
		r.Post("/forgot-password", handler.ForgotPassword)
		r.With(mw.Authenticate).Post("/reset-password", handler.ResetPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Post("/logout", handler.Logout)
	})
}
