package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/krishanraja/try-ritual-sub002/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (handler *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var request registerRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	request.Email = strings.ToLower(strings.TrimSpace(request.Email))
	if request.Email == "" || request.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if request.DisplayName == "" {
		request.DisplayName = request.Email
	}

	partner, token, err := handler.authService.Register(r.Context(), request.Email, request.Password, request.DisplayName)
	if err != nil {
		writeError(w, http.StatusConflict, "could not create account")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token":   token,
		"partner": partner,
	})
}

func (handler *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var request loginRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	partner, token, err := handler.authService.Login(r.Context(), strings.ToLower(strings.TrimSpace(request.Email)), request.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"partner": partner,
	})
}
