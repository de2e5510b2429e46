package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpoll/backend/internal/middleware"
	"github.com/classpoll/backend/internal/models"
	"github.com/classpoll/backend/pkg/response"
	"github.com/classpoll/backend/pkg/utils"
)

// SignupRequest is the body for POST /api/v1/signup.
type SignupRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
}

// LoginRequest is the body for POST /api/v1/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Signup handles POST /api/v1/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Please provide username, password and role")
		return
	}

	role := models.Role(req.Role)
	if !role.Valid() {
		response.BadRequest(c, "Role must be either TEACHER or STUDENT")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), req.Username, hash, role)
	if err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			response.BadRequest(c, "User already exists")
			return
		}
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Username, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /api/v1/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Please provide username and password")
		return
	}

	user, err := h.repo.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		response.BadRequest(c, "User does not exist")
		return
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		response.BadRequest(c, "Invalid credentials")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Username, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Me handles GET /api/v1/me (JWT required).
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.Unauthorized(c, "user not found")
		return
	}
	response.OK(c, user.ToPublic())
}
