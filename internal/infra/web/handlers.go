// File: internal/infra/web/handlers.go
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"loyalty-core/internal/domain"
	"loyalty-core/internal/domain/model"
	"loyalty-core/internal/infra/logging"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain sentinels onto HTTP status codes. Unknown errors
// stay opaque 500s.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrMembershipNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProgramNotActive),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrRedeemInProgress),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrTooSoon),
		errors.Is(err, domain.ErrDailyLimitReached):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// clientIP prefers the first X-Forwarded-For hop set by the edge proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return r.RemoteAddr
}

func pagination(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// ===== auth =====

type sessionCreateRequest struct {
	AdminKey   string `json:"admin_key"`
	BusinessID string `json:"business_id"`
}

func (s *Server) sessionCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if s.adminKey == "" || req.AdminKey != s.adminKey {
			s.log.Warn().
				Str("presented_key", logging.Redact(req.AdminKey, false)).
				Str("remote", clientIP(r)).
				Msg("session mint with bad admin key")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if req.BusinessID == "" {
			http.Error(w, "business_id is required", http.StatusBadRequest)
			return
		}
		token, err := s.auth.Mint(w, req.BusinessID)
		if err != nil {
			http.Error(w, "Failed to mint session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"token": token})
	}
}

func (s *Server) sessionClearHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.auth.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ===== earn =====

type earnRequest struct {
	ProgramID      string `json:"program_id"`
	CustomerPassID string `json:"customer_pass_id"`
	Token          string `json:"token"`
}

// earnHandler is the counter-scan endpoint. Rejections still answer with
// the structured result so the customer's pass can render the reason.
func (s *Server) earnHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req earnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.ProgramID == "" || req.CustomerPassID == "" {
			http.Error(w, "program_id and customer_pass_id are required", http.StatusBadRequest)
			return
		}

		res, err := s.earnUC.RecordEarn(r.Context(), req.ProgramID, req.CustomerPassID, req.Token, clientIP(r))
		if err != nil {
			if res != nil {
				writeJSON(w, statusFor(err), res)
				return
			}
			http.Error(w, "Failed to record earn", statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ===== programs =====

type programCreateRequest struct {
	BusinessID        string `json:"business_id"`
	Type              string `json:"type"`
	RewardThreshold   int    `json:"reward_threshold"`
	EarnMode          string `json:"earn_mode"`
	EarnIncrement     int    `json:"earn_increment"`
	MaxEarnsPerDay    int    `json:"max_earns_per_day"`
	AllowUncapped     bool   `json:"allow_uncapped"`
	MinGapMinutes     int    `json:"min_gap_minutes"`
	Timezone          string `json:"timezone"`
	RewardDescription string `json:"reward_description"`
	StampLabel        string `json:"stamp_label"`
	IconRef           string `json:"icon_ref"`
}

func (s *Server) programCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req programCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.BusinessID == "" {
			http.Error(w, "business_id is required", http.StatusBadRequest)
			return
		}
		rules := model.ProgramRules{
			Type:            model.ProgramType(req.Type),
			RewardThreshold: req.RewardThreshold,
			EarnMode:        model.EarnMode(req.EarnMode),
			EarnIncrement:   req.EarnIncrement,
			MaxEarnsPerDay:  req.MaxEarnsPerDay,
			AllowUncapped:   req.AllowUncapped,
			MinGapMinutes:   req.MinGapMinutes,
			Timezone:        req.Timezone,
		}
		branding := model.Branding{
			RewardDescription: req.RewardDescription,
			StampLabel:        req.StampLabel,
			IconRef:           req.IconRef,
		}
		p, err := s.programUC.Create(r.Context(), req.BusinessID, rules, branding)
		if err != nil {
			http.Error(w, "Failed to create program", statusFor(err))
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func (s *Server) programGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.programUC.Get(r.Context(), chi.URLParam(r, "programID"))
		if err != nil {
			http.Error(w, "Failed to get program", statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) programListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID := r.URL.Query().Get("business_id")
		if businessID == "" {
			http.Error(w, "business_id is required", http.StatusBadRequest)
			return
		}
		programs, err := s.programUC.ListByBusiness(r.Context(), businessID)
		if err != nil {
			http.Error(w, "Failed to list programs", statusFor(err))
			return
		}
		response := struct {
			Data []*model.Program `json:"data"`
		}{Data: programs}
		writeJSON(w, http.StatusOK, response)
	}
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (s *Server) programTransitionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		p, err := s.programUC.Transition(r.Context(), chi.URLParam(r, "programID"), model.ProgramStatus(req.Status))
		if err != nil {
			http.Error(w, "Failed to transition program", statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) rotateTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := s.programUC.RotateToken(r.Context(), chi.URLParam(r, "programID"))
		if err != nil {
			http.Error(w, "Failed to rotate token", statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (s *Server) invalidAttemptsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit := pagination(r)
		events, err := s.earnUC.InvalidAttempts(r.Context(), chi.URLParam(r, "programID"), offset, limit)
		if err != nil {
			http.Error(w, "Failed to list invalid attempts", statusFor(err))
			return
		}
		response := struct {
			Data   []*model.EarnEvent `json:"data"`
			Limit  int                `json:"limit"`
			Offset int                `json:"offset"`
		}{Data: events, Limit: limit, Offset: offset}
		writeJSON(w, http.StatusOK, response)
	}
}

// ===== memberships =====

func (s *Server) membershipGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := s.memberUC.Get(r.Context(), chi.URLParam(r, "membershipID"))
		if err != nil {
			http.Error(w, "Failed to get membership", statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) membershipListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit := pagination(r)
		members, err := s.memberUC.ListByProgram(r.Context(), chi.URLParam(r, "programID"), offset, limit)
		if err != nil {
			http.Error(w, "Failed to list memberships", statusFor(err))
			return
		}
		response := struct {
			Data   []*model.Membership `json:"data"`
			Limit  int                 `json:"limit"`
			Offset int                 `json:"offset"`
		}{Data: members, Limit: limit, Offset: offset}
		writeJSON(w, http.StatusOK, response)
	}
}

func (s *Server) historyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit := pagination(r)
		events, err := s.earnUC.History(r.Context(), chi.URLParam(r, "membershipID"), offset, limit)
		if err != nil {
			http.Error(w, "Failed to get history", statusFor(err))
			return
		}
		response := struct {
			Data   []*model.EarnEvent `json:"data"`
			Limit  int                `json:"limit"`
			Offset int                `json:"offset"`
		}{Data: events, Limit: limit, Offset: offset}
		writeJSON(w, http.StatusOK, response)
	}
}

// ===== redemptions =====

func (s *Server) redeemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.redeemUC.Consume(r.Context(), chi.URLParam(r, "membershipID"))
		if err != nil {
			http.Error(w, "Failed to redeem", statusFor(err))
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func (s *Server) redemptionGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := s.redeemUC.Get(r.Context(), chi.URLParam(r, "redemptionID"))
		if err != nil {
			http.Error(w, "Failed to get redemption", statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) redemptionListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redemptions, err := s.redeemUC.ListByMembership(r.Context(), chi.URLParam(r, "membershipID"))
		if err != nil {
			http.Error(w, "Failed to list redemptions", statusFor(err))
			return
		}
		response := struct {
			Data []*model.Redemption `json:"data"`
		}{Data: redemptions}
		writeJSON(w, http.StatusOK, response)
	}
}

type flagRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) redemptionFlagHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req flagRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.redeemUC.Flag(r.Context(), chi.URLParam(r, "redemptionID"), req.Reason); err != nil {
			http.Error(w, "Failed to flag redemption", statusFor(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
