package handlers

import (
	"github.com/gin-gonic/gin"

	"pacadmin/internal/domain/auth"
	"pacadmin/internal/infrastructure/http/v1/dto"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{BaseHandler: base, service: service}
}

// Login authenticates an admin and returns an access token.
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	session, err := h.service.Login(c.Request.Context(), auth.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, session)
}

// Register creates a new admin account.
// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.Register(c.Request.Context(), req.Email, req.Password, req.Role); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "account created")
}
