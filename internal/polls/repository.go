// Package polls provides poll and response persistence plus the poll CRUD,
// results and history endpoints.
package polls

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classpoll/backend/internal/models"
)

// Repository handles poll and poll response persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new poll.
func (r *Repository) Create(ctx context.Context, p *models.Poll) error {
	const q = `INSERT INTO polls (room_id, question, options, correct_option)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.RoomID, p.Question, p.Options, p.CorrectOption).
		Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}

// GetByID returns a poll by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	const q = `SELECT id, room_id, question, options, correct_option, is_active, created_at, updated_at
		FROM polls WHERE id = $1`
	var p models.Poll
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&p.ID, &p.RoomID, &p.Question, &p.Options, &p.CorrectOption, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetInRoom returns a poll by ID only if it belongs to the given room.
func (r *Repository) GetInRoom(ctx context.Context, id, roomID uuid.UUID) (*models.Poll, error) {
	const q = `SELECT id, room_id, question, options, correct_option, is_active, created_at, updated_at
		FROM polls WHERE id = $1 AND room_id = $2`
	var p models.Poll
	err := r.pool.QueryRow(ctx, q, id, roomID).
		Scan(&p.ID, &p.RoomID, &p.Question, &p.Options, &p.CorrectOption, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOwned returns a poll by ID only if its room belongs to the given teacher.
func (r *Repository) GetOwned(ctx context.Context, id, teacherID uuid.UUID) (*models.Poll, error) {
	const q = `SELECT p.id, p.room_id, p.question, p.options, p.correct_option, p.is_active, p.created_at, p.updated_at
		FROM polls p JOIN rooms r ON r.id = p.room_id
		WHERE p.id = $1 AND r.teacher_id = $2`
	var p models.Poll
	err := r.pool.QueryRow(ctx, q, id, teacherID).
		Scan(&p.ID, &p.RoomID, &p.Question, &p.Options, &p.CorrectOption, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByRoom returns a room's polls newest first, each with its response count.
func (r *Repository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Poll, error) {
	const q = `SELECT p.id, p.room_id, p.question, p.options, p.correct_option, p.is_active, p.created_at, p.updated_at,
		COUNT(pr.id)
		FROM polls p LEFT JOIN poll_responses pr ON pr.poll_id = p.id
		WHERE p.room_id = $1
		GROUP BY p.id ORDER BY p.created_at DESC`
	rows, err := r.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Poll
	for rows.Next() {
		var p models.Poll
		if err := rows.Scan(&p.ID, &p.RoomID, &p.Question, &p.Options, &p.CorrectOption, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.ResponseCount); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Update applies a partial update (nil fields keep their current value) and
// returns the updated poll.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, question *string, options []string, correctOption *string, isActive *bool) (*models.Poll, error) {
	const q = `UPDATE polls SET
		question = COALESCE($1, question),
		options = COALESCE($2, options),
		correct_option = COALESCE($3, correct_option),
		is_active = COALESCE($4, is_active),
		updated_at = NOW()
		WHERE id = $5`
	tag, err := r.pool.Exec(ctx, q, question, options, correctOption, isActive, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a poll; its responses cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM polls WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CreateResponse records a user's answer. A second response for the same
// (poll, user) pair is rejected with models.ErrDuplicate, never overwritten.
func (r *Repository) CreateResponse(ctx context.Context, resp *models.PollResponse) error {
	const q = `INSERT INTO poll_responses (poll_id, user_id, option)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, resp.PollID, resp.UserID, resp.Option).Scan(&resp.ID, &resp.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrDuplicate
		}
		return err
	}
	return nil
}

// HasResponse reports whether the user already answered the poll.
func (r *Repository) HasResponse(ctx context.Context, pollID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM poll_responses WHERE poll_id = $1 AND user_id = $2)`,
		pollID, userID).Scan(&exists)
	return exists, err
}

// ListResponses returns a poll's responses in submission order.
func (r *Repository) ListResponses(ctx context.Context, pollID uuid.UUID) ([]models.PollResponse, error) {
	const q = `SELECT id, poll_id, user_id, option, created_at
		FROM poll_responses WHERE poll_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.PollResponse
	for rows.Next() {
		var resp models.PollResponse
		if err := rows.Scan(&resp.ID, &resp.PollID, &resp.UserID, &resp.Option, &resp.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, resp)
	}
	return list, rows.Err()
}

// ListResponsesWithUsers returns a poll's responses with user summaries attached.
func (r *Repository) ListResponsesWithUsers(ctx context.Context, pollID uuid.UUID) ([]models.PollResponse, error) {
	const q = `SELECT pr.id, pr.poll_id, pr.user_id, pr.option, pr.created_at, u.id, u.username, u.role
		FROM poll_responses pr JOIN users u ON u.id = pr.user_id
		WHERE pr.poll_id = $1 ORDER BY pr.created_at`
	rows, err := r.pool.Query(ctx, q, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.PollResponse
	for rows.Next() {
		var resp models.PollResponse
		var u models.UserPublic
		if err := rows.Scan(&resp.ID, &resp.PollID, &resp.UserID, &resp.Option, &resp.CreatedAt, &u.ID, &u.Username, &u.Role); err != nil {
			return nil, err
		}
		resp.User = &u
		list = append(list, resp)
	}
	return list, rows.Err()
}

// UserResponse pairs a user's response with the poll it answered.
type UserResponse struct {
	Response models.PollResponse
	Poll     models.Poll
}

// ListByUser returns every response the user has submitted, newest first,
// with the answered poll attached.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]UserResponse, error) {
	const q = `SELECT pr.id, pr.poll_id, pr.user_id, pr.option, pr.created_at,
		p.id, p.room_id, p.question, p.options, p.correct_option, p.is_active, p.created_at, p.updated_at
		FROM poll_responses pr JOIN polls p ON p.id = pr.poll_id
		WHERE pr.user_id = $1 ORDER BY pr.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []UserResponse
	for rows.Next() {
		var ur UserResponse
		if err := rows.Scan(&ur.Response.ID, &ur.Response.PollID, &ur.Response.UserID, &ur.Response.Option, &ur.Response.CreatedAt,
			&ur.Poll.ID, &ur.Poll.RoomID, &ur.Poll.Question, &ur.Poll.Options, &ur.Poll.CorrectOption, &ur.Poll.IsActive, &ur.Poll.CreatedAt, &ur.Poll.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, ur)
	}
	return list, rows.Err()
}
