package server

import (
	"errors"
	"net/http"

	"github.com/renewpackages/renewapi/pkg/auth"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

type validateResponse struct {
	Valid bool      `json:"valid"`
	User  auth.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeRequest(w, r, &req, "Username and password are required") {
		return
	}
	token, u, err := s.Auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		internalError(w, r, "Internal server error", err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: u})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r)
	writeJSON(w, http.StatusOK, validateResponse{Valid: true, User: u})
}
