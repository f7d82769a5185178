package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/service"
)

// Health represents the health check response
type Health struct {
	Status    string `json:"status"`
	Database  string `json:"database,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := Health{Status: "ok", Timestamp: time.Now().Format(time.RFC3339)}
	code := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		health.Database = "ok"
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn("Health check: database unreachable", "error", err)
			health.Status = "degraded"
			health.Database = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	s.respondWithJSON(w, code, ApiResponse{OK: code == http.StatusOK, Data: health})
}

type loginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, service.MsgMissingFields)
		return
	}

	res, err := s.users.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, res)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type createUserResponse struct {
	OK       bool        `json:"ok"`
	UserID   string      `json:"user_id"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	FullName string      `json:"full_name"`
}

func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, service.MsgMissingFields)
		return
	}

	u, err := s.users.CreateUser(r.Context(), service.NewUserInput{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Role:     models.Role(strings.ToLower(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, createUserResponse{
		OK:       true,
		UserID:   u.ID.String(),
		Email:    u.Email,
		Role:     u.Role,
		FullName: u.FullName,
	})
}
