// Package httpapi exposes the identity engine over HTTP as JSON. It is a
// thin adapter: every handler decodes, calls one engine operation and maps
// the domain error to a status code. No business rules live here.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/praxisauth/identity"
	"github.com/praxisauth/identity/jwt"
)

type ctxKey int

const claimsKey ctxKey = 0

// Server wires the engine to a chi router.
type Server struct {
	engine *identity.Engine
	logger *log.Logger
}

// New builds a server around engine. logger may be nil to silence
// internal-error logging.
func New(engine *identity.Engine, logger *log.Logger) *Server {
	return &Server{engine: engine, logger: logger}
}

// Routes returns the full route tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/.well-known/jwks.json", s.handleJWKS)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
		r.Post("/cross-domain/redeem", s.handleCrossDomainRedeem)
		r.Post("/email/confirm", s.handleEmailConfirm)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/me", s.handleMe)
			r.Post("/logout-all", s.handleLogoutAll)
			r.Post("/cross-domain/issue", s.handleCrossDomainIssue)
			r.Post("/email/change", s.handleEmailChange)
		})
	})

	return r
}

// requireAuth verifies the bearer token and stashes its claims in the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, identity.ErrTokenInvalid)
			return
		}

		claims, err := s.engine.VerifyAccess(r.Context(), token)
		if err != nil {
			s.writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(ctx context.Context) *jwt.AccessClaims {
	claims, _ := ctx.Value(claimsKey).(*jwt.AccessClaims)
	return claims
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
