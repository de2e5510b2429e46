package polls

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpoll/backend/internal/middleware"
	"github.com/classpoll/backend/internal/models"
	"github.com/classpoll/backend/pkg/response"
)

// RoomStore is the slice of room persistence the poll endpoints need;
// satisfied by rooms.Repository.
type RoomStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetOwned(ctx context.Context, id, teacherID uuid.UUID) (*models.Room, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.Room, error)
}

// CreateRequest is the body for POST /api/v1/teacher/polls.
type CreateRequest struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correctOption"`
	RoomID        string   `json:"roomId"`
}

// UpdateRequest is the body for PUT /api/v1/teacher/polls/:pollId.
// Absent fields keep their current values.
type UpdateRequest struct {
	Question      *string  `json:"question"`
	Options       []string `json:"options"`
	CorrectOption *string  `json:"correctOption"`
	IsActive      *bool    `json:"isActive"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	repo   *Repository
	rooms  RoomStore
	logger *zap.Logger
}

// NewHandler creates a polls handler.
func NewHandler(repo *Repository, rooms RoomStore, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, rooms: rooms, logger: logger}
}

// GetResults handles GET /api/v1/polls/:pollId/results. Responses are grouped
// per option so the client can render a tally.
func (h *Handler) GetResults(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}

	poll, err := h.repo.GetByID(c.Request.Context(), pollID)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Poll not found")
		return
	}
	if err != nil {
		h.logger.Error("get poll", zap.Error(err))
		response.Internal(c, "Failed to fetch poll results")
		return
	}

	room, err := h.rooms.GetByID(c.Request.Context(), poll.RoomID)
	if err != nil {
		h.logger.Error("get room", zap.Error(err))
		response.Internal(c, "Failed to fetch poll results")
		return
	}

	responses, err := h.repo.ListResponsesWithUsers(c.Request.Context(), pollID)
	if err != nil {
		h.logger.Error("list responses", zap.Error(err))
		response.Internal(c, "Failed to fetch poll results")
		return
	}

	results := make(map[string][]gin.H, len(poll.Options))
	for _, option := range poll.Options {
		entries := []gin.H{}
		for _, resp := range responses {
			if resp.Option == option {
				entries = append(entries, gin.H{
					"id":        resp.ID,
					"user":      resp.User,
					"createdAt": resp.CreatedAt,
				})
			}
		}
		results[option] = entries
	}

	response.OK(c, gin.H{
		"poll": poll,
		"room": gin.H{
			"id":       room.ID,
			"title":    room.Title,
			"roomCode": room.RoomCode,
			"teacher":  room.Teacher,
		},
		"results": results,
	})
}

// GetResponses handles GET /api/v1/polls/:pollId/responses. Each response
// carries an isCorrect flag against the poll's correct option.
func (h *Handler) GetResponses(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}

	poll, err := h.repo.GetByID(c.Request.Context(), pollID)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Poll not found")
		return
	}
	if err != nil {
		h.logger.Error("get poll", zap.Error(err))
		response.Internal(c, "Failed to fetch poll responses")
		return
	}

	responses, err := h.repo.ListResponsesWithUsers(c.Request.Context(), pollID)
	if err != nil {
		h.logger.Error("list responses", zap.Error(err))
		response.Internal(c, "Failed to fetch poll responses")
		return
	}

	out := make([]gin.H, 0, len(responses))
	for _, resp := range responses {
		out = append(out, gin.H{
			"id":        resp.ID,
			"user":      resp.User,
			"option":    resp.Option,
			"isCorrect": resp.Option == poll.CorrectOption,
			"createdAt": resp.CreatedAt,
		})
	}

	response.OK(c, gin.H{
		"poll":           poll,
		"responses":      out,
		"totalResponses": len(out),
	})
}

// GetAttended handles GET /api/v1/polls/user/attended: the caller's response
// history with the answered polls and their rooms, plus the rooms joined.
func (h *Handler) GetAttended(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	history, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list user responses", zap.Error(err))
		response.Internal(c, "Failed to fetch attended polls")
		return
	}

	attended := make([]gin.H, 0, len(history))
	correct := 0
	for _, ur := range history {
		isCorrect := ur.Response.Option == ur.Poll.CorrectOption
		if isCorrect {
			correct++
		}
		room, err := h.rooms.GetByID(c.Request.Context(), ur.Poll.RoomID)
		if err != nil {
			h.logger.Error("get room", zap.Error(err))
			response.Internal(c, "Failed to fetch attended polls")
			return
		}
		attended = append(attended, gin.H{
			"pollId":        ur.Poll.ID,
			"question":      ur.Poll.Question,
			"options":       ur.Poll.Options,
			"correctOption": ur.Poll.CorrectOption,
			"isActive":      ur.Poll.IsActive,
			"userResponse":  ur.Response.Option,
			"isCorrect":     isCorrect,
			"respondedAt":   ur.Response.CreatedAt,
			"pollCreatedAt": ur.Poll.CreatedAt,
			"room": gin.H{
				"id":       room.ID,
				"title":    room.Title,
				"roomCode": room.RoomCode,
				"teacher":  room.Teacher,
			},
		})
	}

	joinedRooms, err := h.rooms.ListByParticipant(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list joined rooms", zap.Error(err))
		response.Internal(c, "Failed to fetch attended polls")
		return
	}

	response.OK(c, gin.H{
		"attendedPolls":    attended,
		"totalAttended":    len(attended),
		"totalCorrect":     correct,
		"joinedRooms":      joinedRooms,
		"totalJoinedRooms": len(joinedRooms),
	})
}

// Create handles POST /api/v1/teacher/polls.
func (h *Handler) Create(c *gin.Context) {
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if req.Question == "" || len(req.Options) == 0 || req.CorrectOption == "" || req.RoomID == "" {
		response.BadRequest(c, "Question, options, correctOption, and roomId are required")
		return
	}
	if len(req.Options) < 2 {
		response.BadRequest(c, "Options must be an array with at least 2 items")
		return
	}
	if !containsOption(req.Options, req.CorrectOption) {
		response.BadRequest(c, "Correct option must be one of the provided options")
		return
	}

	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}

	room, err := h.rooms.GetOwned(c.Request.Context(), roomID, teacherID)
	if err != nil {
		response.NotFound(c, "Room not found or you do not have permission to create polls in it")
		return
	}

	poll := &models.Poll{
		RoomID:        room.ID,
		Question:      req.Question,
		Options:       req.Options,
		CorrectOption: req.CorrectOption,
	}
	if err := h.repo.Create(c.Request.Context(), poll); err != nil {
		h.logger.Error("create poll", zap.Error(err))
		response.Internal(c, "Failed to create poll")
		return
	}

	response.Created(c, gin.H{"poll": gin.H{
		"id":            poll.ID,
		"question":      poll.Question,
		"options":       poll.Options,
		"correctOption": poll.CorrectOption,
		"isActive":      poll.IsActive,
		"createdAt":     poll.CreatedAt,
		"room": gin.H{
			"id":       room.ID,
			"roomCode": room.RoomCode,
			"title":    room.Title,
		},
	}})
}

// Update handles PUT /api/v1/teacher/polls/:pollId.
func (h *Handler) Update(c *gin.Context) {
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	pollID, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}

	existing, err := h.repo.GetOwned(c.Request.Context(), pollID, teacherID)
	if err != nil {
		response.NotFound(c, "Poll not found or you do not have permission to update it")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	if req.Options != nil && len(req.Options) < 2 {
		response.BadRequest(c, "Options must be an array with at least 2 items")
		return
	}
	if req.CorrectOption != nil {
		finalOptions := existing.Options
		if req.Options != nil {
			finalOptions = req.Options
		}
		if !containsOption(finalOptions, *req.CorrectOption) {
			response.BadRequest(c, "Correct option must be one of the provided options")
			return
		}
	}

	poll, err := h.repo.Update(c.Request.Context(), pollID, req.Question, req.Options, req.CorrectOption, req.IsActive)
	if err != nil {
		h.logger.Error("update poll", zap.Error(err))
		response.Internal(c, "Failed to update poll")
		return
	}

	response.OK(c, gin.H{"poll": poll})
}

// Delete handles DELETE /api/v1/teacher/polls/:pollId. Responses cascade.
func (h *Handler) Delete(c *gin.Context) {
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	pollID, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}

	if _, err := h.repo.GetOwned(c.Request.Context(), pollID, teacherID); err != nil {
		response.NotFound(c, "Poll not found or you do not have permission to delete it")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), pollID); err != nil {
		h.logger.Error("delete poll", zap.Error(err))
		response.Internal(c, "Failed to delete poll")
		return
	}

	response.OK(c, gin.H{"message": "Poll deleted successfully"})
}

func containsOption(options []string, option string) bool {
	for _, o := range options {
		if o == option {
			return true
		}
	}
	return false
}
