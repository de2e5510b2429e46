package rooms

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpoll/backend/internal/middleware"
	"github.com/classpoll/backend/internal/models"
	"github.com/classpoll/backend/pkg/response"
)

// PollLister lists a room's polls; satisfied by polls.Repository.
type PollLister interface {
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Poll, error)
}

// CreateRequest is the body for POST /api/v1/teacher/rooms.
type CreateRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
}

// UpdateRequest is the body for PUT /api/v1/teacher/rooms/:roomId.
// Absent fields keep their current values.
type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

// Handler handles room HTTP endpoints.
type Handler struct {
	repo   *Repository
	polls  PollLister
	logger *zap.Logger
}

// NewHandler creates a rooms handler.
func NewHandler(repo *Repository, polls PollLister, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, polls: polls, logger: logger}
}

// GetRoom handles GET /api/v1/rooms/:roomId.
func (h *Handler) GetRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}

	room, err := h.repo.GetByID(c.Request.Context(), roomID)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Room not found")
		return
	}
	if err != nil {
		h.logger.Error("get room", zap.Error(err))
		response.Internal(c, "Failed to fetch room details")
		return
	}

	participants, err := h.repo.ListParticipants(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("list participants", zap.Error(err))
		response.Internal(c, "Failed to fetch room details")
		return
	}
	polls, err := h.polls.ListByRoom(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("list polls", zap.Error(err))
		response.Internal(c, "Failed to fetch room details")
		return
	}

	response.OK(c, gin.H{"room": gin.H{
		"id":                room.ID,
		"roomCode":          room.RoomCode,
		"title":             room.Title,
		"description":       room.Description,
		"isActive":          room.IsActive,
		"createdAt":         room.CreatedAt,
		"teacher":           room.Teacher,
		"participants":      participants,
		"polls":             polls,
		"totalPolls":        len(polls),
		"totalParticipants": len(participants),
	}})
}

// GetRoomPolls handles GET /api/v1/rooms/:roomId/polls.
func (h *Handler) GetRoomPolls(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}

	room, err := h.repo.GetByID(c.Request.Context(), roomID)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Room not found")
		return
	}
	if err != nil {
		h.logger.Error("get room", zap.Error(err))
		response.Internal(c, "Failed to fetch room polls")
		return
	}

	polls, err := h.polls.ListByRoom(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("list polls", zap.Error(err))
		response.Internal(c, "Failed to fetch room polls")
		return
	}

	response.OK(c, gin.H{
		"room": gin.H{
			"id":       room.ID,
			"title":    room.Title,
			"isActive": room.IsActive,
		},
		"polls":      polls,
		"totalPolls": len(polls),
	})
}

// Create handles POST /api/v1/teacher/rooms.
func (h *Handler) Create(c *gin.Context) {
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Room title is required")
		return
	}

	room, err := h.createWithFreshCode(c.Request.Context(), req.Title, req.Description, teacherID)
	if err != nil {
		h.logger.Error("create room", zap.Error(err))
		response.Internal(c, "Failed to create room")
		return
	}

	response.Created(c, gin.H{"room": room})
}

// createWithFreshCode generates a 6-digit join code, retrying on collision.
// The unique constraint on room_code is the backstop for a racing create.
func (h *Handler) createWithFreshCode(ctx context.Context, title string, description *string, teacherID uuid.UUID) (*models.Room, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code := fmt.Sprintf("%06d", 100000+rand.Intn(900000))
		room, err := h.repo.Create(ctx, code, title, description, teacherID)
		if errors.Is(err, models.ErrDuplicate) {
			continue
		}
		return room, err
	}
	return nil, errors.New("could not allocate a unique room code")
}

// List handles GET /api/v1/teacher/rooms.
func (h *Handler) List(c *gin.Context) {
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	roomList, err := h.repo.ListByTeacher(c.Request.Context(), teacherID)
	if err != nil {
		h.logger.Error("list rooms", zap.Error(err))
		response.Internal(c, "Failed to fetch teacher rooms")
		return
	}

	out := make([]gin.H, 0, len(roomList))
	for _, room := range roomList {
		participants, err := h.repo.ListParticipants(c.Request.Context(), room.ID)
		if err != nil {
			h.logger.Error("list participants", zap.Error(err))
			response.Internal(c, "Failed to fetch teacher rooms")
			return
		}
		polls, err := h.polls.ListByRoom(c.Request.Context(), room.ID)
		if err != nil {
			h.logger.Error("list polls", zap.Error(err))
			response.Internal(c, "Failed to fetch teacher rooms")
			return
		}
		active := 0
		for _, p := range polls {
			if p.IsActive {
				active++
			}
		}
		out = append(out, gin.H{
			"id":                room.ID,
			"roomCode":          room.RoomCode,
			"title":             room.Title,
			"description":       room.Description,
			"isActive":          room.IsActive,
			"createdAt":         room.CreatedAt,
			"updatedAt":         room.UpdatedAt,
			"teacher":           room.Teacher,
			"totalParticipants": len(participants),
			"totalPolls":        len(polls),
			"activePolls":       active,
			"polls":             polls,
			"participants":      participants,
		})
	}

	response.OK(c, gin.H{"rooms": out, "totalRooms": len(out)})
}

// Update handles PUT /api/v1/teacher/rooms/:roomId.
func (h *Handler) Update(c *gin.Context) {
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}

	if _, err := h.repo.GetOwned(c.Request.Context(), roomID, teacherID); err != nil {
		response.NotFound(c, "Room not found or you do not have permission to update it")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	room, err := h.repo.Update(c.Request.Context(), roomID, req.Title, req.Description, req.IsActive)
	if err != nil {
		h.logger.Error("update room", zap.Error(err))
		response.Internal(c, "Failed to update room")
		return
	}

	response.OK(c, gin.H{"room": room})
}

// Delete handles DELETE /api/v1/teacher/rooms/:roomId. Dependent polls,
// responses and participants are removed by cascade.
func (h *Handler) Delete(c *gin.Context) {
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}

	if _, err := h.repo.GetOwned(c.Request.Context(), roomID, teacherID); err != nil {
		response.NotFound(c, "Room not found or you do not have permission to delete it")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), roomID); err != nil {
		h.logger.Error("delete room", zap.Error(err))
		response.Internal(c, "Failed to delete room")
		return
	}

	response.OK(c, gin.H{"message": "Room deleted successfully"})
}
