// File: internal/infra/web/server.go
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"loyalty-core/internal/infra/logging"
	"loyalty-core/internal/usecase"
)

type Server struct {
	earnUC    *usecase.EarnUseCase
	redeemUC  *usecase.RedemptionUseCase
	programUC *usecase.ProgramUseCase
	memberUC  *usecase.MembershipUseCase
	auth      *AuthManager
	adminKey  string
	log       *zerolog.Logger
}

func NewServer(
	earnUC *usecase.EarnUseCase,
	redeemUC *usecase.RedemptionUseCase,
	programUC *usecase.ProgramUseCase,
	memberUC *usecase.MembershipUseCase,
	auth *AuthManager,
	adminKey string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		earnUC:    earnUC,
		redeemUC:  redeemUC,
		programUC: programUC,
		memberUC:  memberUC,
		auth:      auth,
		adminKey:  adminKey,
		log:       logger,
	}
}

// Router builds the full route tree. The earn endpoint is public (the QR
// deep link carries its own proof), everything else sits behind the staff
// session.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TraceID(s.log))
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))
	r.Use(Timeout(15 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/v1/auth/session", s.sessionCreateHandler())
	r.Delete("/api/v1/auth/session", s.sessionClearHandler())

	r.Post("/api/v1/earn", s.earnHandler())

	r.Group(func(r chi.Router) {
		r.Use(s.staffMiddleware)

		r.Post("/api/v1/programs", s.programCreateHandler())
		r.Get("/api/v1/programs", s.programListHandler())
		r.Get("/api/v1/programs/{programID}", s.programGetHandler())
		r.Post("/api/v1/programs/{programID}/transition", s.programTransitionHandler())
		r.Post("/api/v1/programs/{programID}/rotate-token", s.rotateTokenHandler())
		r.Get("/api/v1/programs/{programID}/memberships", s.membershipListHandler())
		r.Get("/api/v1/programs/{programID}/invalid-attempts", s.invalidAttemptsHandler())

		r.Get("/api/v1/memberships/{membershipID}", s.membershipGetHandler())
		r.Get("/api/v1/memberships/{membershipID}/history", s.historyHandler())
		r.Get("/api/v1/memberships/{membershipID}/redemptions", s.redemptionListHandler())
		r.Post("/api/v1/memberships/{membershipID}/redemptions", s.redeemHandler())

		r.Get("/api/v1/redemptions/{redemptionID}", s.redemptionGetHandler())
		r.Post("/api/v1/redemptions/{redemptionID}/flag", s.redemptionFlagHandler())
	})

	return r
}

// staffMiddleware accepts either a staff session JWT or the static admin
// key. The static key is for provisioning scripts; humans go through the
// session flow.
func (s *Server) staffMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth != nil {
			if claims, err := s.auth.ParseFromRequest(r); err == nil {
				ctx := logging.WithBusinessID(r.Context(), claims.BusinessID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		if s.adminKey != "" && bearerToken(r) == s.adminKey {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
