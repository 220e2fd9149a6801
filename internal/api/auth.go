package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/wellnessgrid/wellnessgrid/internal/auth"
	"github.com/wellnessgrid/wellnessgrid/internal/domain"
	"github.com/wellnessgrid/wellnessgrid/internal/postgres"
)

// authHandler serves account registration, login and identity lookup.
type authHandler struct {
	users    *postgres.Users
	tokens   *auth.Tokens
	validate *validator.Validate
	logger   *slog.Logger
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	DisplayName string `json:"displayName" validate:"required,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// register creates an account and returns a session token.
func (h *authHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, h.validate, &req, h.logger) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	user, err := h.users.Create(r.Context(), req.Email, hash, req.DisplayName)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			WriteError(w, http.StatusConflict, "email_taken", "an account with this email already exists", h.logger)
			return
		}
		writeDomainError(w, err, h.logger)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// login verifies credentials and returns a session token. Unknown email
// and wrong password produce the same response.
func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, h.validate, &req, h.logger) {
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", h.logger)
			return
		}
		writeDomainError(w, err, h.logger)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", h.logger)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// me returns the authenticated account.
func (h *authHandler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}
