package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/renewpackages/renewapi/internal/utils"
	"github.com/renewpackages/renewapi/pkg/aggregate"
	"github.com/renewpackages/renewapi/pkg/auth"
	"github.com/renewpackages/renewapi/pkg/brands"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Engine *aggregate.Engine
	Brands *brands.Service
	Auth   *auth.Service
}

func New(engine *aggregate.Engine, brandSvc *brands.Service, authSvc *auth.Service) *Server {
	return &Server{
		Engine: engine,
		Brands: brandSvc,
		Auth:   authSvc,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/validate", s.authenticated(s.handleValidate))

	// Data
	mux.HandleFunc("GET /api/data/b1", s.handleB1Values)
	mux.HandleFunc("GET /api/data/b2", s.handleB2Data)
	mux.HandleFunc("GET /api/data/b3", s.handleB3Data)
	mux.HandleFunc("GET /api/data/b3/details", s.handleB3Details)
	mux.HandleFunc("PUT /api/data/b2/percentage", s.adminOnly(s.handleUpdateB2Percentage))
	mux.HandleFunc("PUT /api/data/b3/percentage", s.adminOnly(s.handleUpdateB3Percentage))
	mux.HandleFunc("PUT /api/data/b3/details/percentage", s.adminOnly(s.handleUpdateDetailPercentage))
	mux.HandleFunc("DELETE /api/data/configurations", s.adminOnly(s.handleClearConfigurations))
	mux.HandleFunc("POST /api/data/migrate-percentage-configs", s.adminOnly(s.handleMigrateConfigurations))
	mux.HandleFunc("POST /api/data/import", s.adminOnly(s.handleImport))
	mux.HandleFunc("DELETE /api/data", s.adminOnly(s.handleClearData))

	// Phone brands
	mux.HandleFunc("GET /api/phone-brands", s.handleListBrands)
	mux.HandleFunc("POST /api/phone-brands", s.adminOnly(s.handleCreateBrand))
	mux.HandleFunc("PUT /api/phone-brands/{id}", s.adminOnly(s.handleUpdateBrand))
	mux.HandleFunc("DELETE /api/phone-brands/{id}", s.adminOnly(s.handleDeleteBrand))

	return instrument(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Log.Infof("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	utils.Log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type ctxKey int

const userKey ctxKey = 0

func userFrom(r *http.Request) (auth.User, bool) {
	u, ok := r.Context().Value(userKey).(auth.User)
	return u, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Access token required")
			return
		}
		u, err := s.Auth.Authenticate(r.Context(), token)
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusForbidden, "Invalid or expired token")
			return
		}
		if err != nil {
			internalError(w, r, "Internal server error", err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	}
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := userFrom(r); !ok || !u.IsAdmin() {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next(w, r)
	})
}
