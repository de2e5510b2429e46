// Package analytics serves the teacher dashboard aggregates.
package analytics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/classpoll/backend/internal/middleware"
	"github.com/classpoll/backend/pkg/response"
)

// Handler handles GET /api/v1/teacher/analytics.
type Handler struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(pool *pgxpool.Pool, logger *zap.Logger) *Handler {
	return &Handler{pool: pool, logger: logger}
}

// GetTeacherAnalytics aggregates the caller's rooms, polls, participants and
// responses into overview totals, recent activity and per-room stats.
func (h *Handler) GetTeacherAnalytics(c *gin.Context) {
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ctx := c.Request.Context()

	const overviewQ = `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE is_active),
		(SELECT COUNT(*) FROM polls p JOIN rooms r2 ON r2.id = p.room_id WHERE r2.teacher_id = $1),
		(SELECT COUNT(*) FROM polls p JOIN rooms r2 ON r2.id = p.room_id WHERE r2.teacher_id = $1 AND p.is_active),
		(SELECT COUNT(*) FROM room_participants rp JOIN rooms r2 ON r2.id = rp.room_id WHERE r2.teacher_id = $1),
		(SELECT COUNT(*) FROM poll_responses pr JOIN polls p ON p.id = pr.poll_id JOIN rooms r2 ON r2.id = p.room_id WHERE r2.teacher_id = $1),
		COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '7 days'),
		(SELECT COUNT(*) FROM polls p JOIN rooms r2 ON r2.id = p.room_id WHERE r2.teacher_id = $1 AND p.created_at >= NOW() - INTERVAL '7 days')
		FROM rooms WHERE teacher_id = $1`

	var totalRooms, activeRooms, totalPolls, activePolls, totalParticipants, totalResponses, recentRooms, recentPolls int
	if err := h.pool.QueryRow(ctx, overviewQ, teacherID).Scan(
		&totalRooms, &activeRooms, &totalPolls, &activePolls,
		&totalParticipants, &totalResponses, &recentRooms, &recentPolls); err != nil {
		h.logger.Error("analytics overview", zap.Error(err))
		response.Internal(c, "Failed to fetch teacher analytics")
		return
	}

	const statsQ = `SELECT r.id, r.room_code, r.title, r.is_active, r.created_at,
		(SELECT COUNT(*) FROM polls p WHERE p.room_id = r.id),
		(SELECT COUNT(*) FROM polls p WHERE p.room_id = r.id AND p.is_active),
		(SELECT COUNT(*) FROM room_participants rp WHERE rp.room_id = r.id),
		(SELECT COUNT(*) FROM poll_responses pr JOIN polls p ON p.id = pr.poll_id WHERE p.room_id = r.id)
		FROM rooms r WHERE r.teacher_id = $1 ORDER BY r.created_at DESC`

	rows, err := h.pool.Query(ctx, statsQ, teacherID)
	if err != nil {
		h.logger.Error("analytics room stats", zap.Error(err))
		response.Internal(c, "Failed to fetch teacher analytics")
		return
	}
	defer rows.Close()

	roomStats := []gin.H{}
	for rows.Next() {
		var (
			id                                   uuid.UUID
			code, title                          string
			isActive                             bool
			createdAt                            time.Time
			polls, active, participants, answers int
		)
		if err := rows.Scan(&id, &code, &title, &isActive, &createdAt, &polls, &active, &participants, &answers); err != nil {
			h.logger.Error("analytics room stats scan", zap.Error(err))
			response.Internal(c, "Failed to fetch teacher analytics")
			return
		}
		roomStats = append(roomStats, gin.H{
			"roomId":            id,
			"roomCode":          code,
			"title":             title,
			"isActive":          isActive,
			"totalPolls":        polls,
			"activePolls":       active,
			"totalParticipants": participants,
			"totalResponses":    answers,
			"createdAt":         createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("analytics room stats", zap.Error(err))
		response.Internal(c, "Failed to fetch teacher analytics")
		return
	}

	response.OK(c, gin.H{"analytics": gin.H{
		"overview": gin.H{
			"totalRooms":        totalRooms,
			"totalPolls":        totalPolls,
			"totalParticipants": totalParticipants,
			"totalResponses":    totalResponses,
			"activeRooms":       activeRooms,
			"activePolls":       activePolls,
		},
		"recentActivity": gin.H{
			"roomsCreatedLast7Days": recentRooms,
			"pollsCreatedLast7Days": recentPolls,
		},
		"roomStats": roomStats,
	}})
}
