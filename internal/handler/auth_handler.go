package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/dmarcviz/internal/auth"
	"github.com/jengzang/dmarcviz/pkg/response"
)

// LoginRequest is the body of POST /api/v1/auth/login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthHandler handles login requests
type AuthHandler struct {
	authenticator *auth.Authenticator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authenticator *auth.Authenticator) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
	}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Username and password are required")
		return
	}

	token, expires, err := h.authenticator.Login(req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, LoginResponse{Token: token, ExpiresAt: expires})
}
