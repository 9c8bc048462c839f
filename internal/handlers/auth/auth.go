package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/Jsunwilke/employeeapp-sub001/internal/pkg/response"
	"github.com/Jsunwilke/employeeapp-sub001/internal/repositories"
	authService "github.com/Jsunwilke/employeeapp-sub001/internal/services/auth"
)

type AuthHandler struct {
	users      *repositories.UserRepository
	jwtService *authService.JWTService
}

func NewAuthHandler(users *repositories.UserRepository, jwtService *authService.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwtService: jwtService}
}

func (h *AuthHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username       string `json:"username"`
		DisplayName    string `json:"display_name"`
		Password       string `json:"password"`
		OrganizationID string `json:"organization_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if body.Username == "" || body.Password == "" {
		response.RespondWithError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		response.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}

	user, err := h.users.Create(r.Context(), body.Username, body.DisplayName, string(hash), body.OrganizationID)
	if err != nil {
		log.Printf("Failed to create user %s: %v", body.Username, err)
		response.RespondWithError(w, http.StatusConflict, "User already exists")
		return
	}
	response.RespondWithJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	user, passwordHash, err := h.users.GetByUsername(r.Context(), body.Username)
	if err != nil {
		response.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(body.Password)) != nil {
		response.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	accessToken, err := h.jwtService.GenerateToken(user.ID, user.Username, user.DisplayName, user.Role)
	if err != nil {
		log.Printf("Failed to issue token for user %d: %v", user.ID, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}
	refreshToken, err := h.jwtService.GenerateRefreshToken(r.Context(), user.ID)
	if err != nil {
		log.Printf("Failed to issue refresh token for user %d: %v", user.ID, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}

	response.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token":         accessToken,
		"refresh_token": refreshToken,
		"user":          user,
	})
}

func (h *AuthHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		response.RespondWithError(w, http.StatusUnauthorized, "Refresh token required")
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(r.Context(), body.RefreshToken)
	if err != nil {
		if errors.Is(err, authService.ErrInvalidRefreshToken) {
			response.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}
		response.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		response.RespondWithError(w, http.StatusUnauthorized, "User not found")
		return
	}

	accessToken, err := h.jwtService.GenerateToken(user.ID, user.Username, user.DisplayName, user.Role)
	if err != nil {
		response.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]string{"token": accessToken})
}

func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.RefreshToken != "" {
		if err := h.jwtService.RevokeRefreshToken(r.Context(), body.RefreshToken); err != nil {
			log.Printf("Failed to revoke refresh token: %v", err)
		}
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
