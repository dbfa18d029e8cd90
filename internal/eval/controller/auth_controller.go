package controller

import (
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/service"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// AuthController handles the operator token endpoint.
type AuthController struct {
	authService *service.AuthService
}

// NewAuthController creates a new AuthController.
func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// IssueToken exchanges operator credentials for an access token.
func (h *AuthController) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	result, err := h.authService.IssueToken(req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, TokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   result.ExpiresAt,
		Role:        result.Role,
	})
}

// TokenRequest carries operator credentials.
type TokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse returns a signed access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
}
