// Package rooms provides room and participant persistence plus the room CRUD
// and read endpoints.
package rooms

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classpoll/backend/internal/models"
)

// Repository handles room and participant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a rooms repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roomColumns = `r.id, r.room_code, r.title, r.description, r.teacher_id, r.is_active, r.created_at, r.updated_at,
	u.id, u.username, u.role`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var r models.Room
	var teacher models.UserPublic
	err := row.Scan(&r.ID, &r.RoomCode, &r.Title, &r.Description, &r.TeacherID, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
		&teacher.ID, &teacher.Username, &teacher.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Teacher = &teacher
	return &r, nil
}

// Create inserts a new room and returns it with the teacher summary attached.
// Returns models.ErrDuplicate if the room code is already in use.
func (r *Repository) Create(ctx context.Context, roomCode, title string, description *string, teacherID uuid.UUID) (*models.Room, error) {
	const q = `INSERT INTO rooms (room_code, title, description, teacher_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, roomCode, title, description, teacherID).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, models.ErrDuplicate
		}
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a room by ID with its teacher summary.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms r JOIN users u ON u.id = r.teacher_id WHERE r.id = $1`
	return scanRoom(r.pool.QueryRow(ctx, q, id))
}

// GetByCode returns a room by its join code with its teacher summary.
func (r *Repository) GetByCode(ctx context.Context, roomCode string) (*models.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms r JOIN users u ON u.id = r.teacher_id WHERE r.room_code = $1`
	return scanRoom(r.pool.QueryRow(ctx, q, roomCode))
}

// GetOwned returns a room by ID only if it belongs to the given teacher.
func (r *Repository) GetOwned(ctx context.Context, id, teacherID uuid.UUID) (*models.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms r JOIN users u ON u.id = r.teacher_id
		WHERE r.id = $1 AND r.teacher_id = $2`
	return scanRoom(r.pool.QueryRow(ctx, q, id, teacherID))
}

// ListByTeacher returns all rooms created by the teacher, newest first.
func (r *Repository) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms r JOIN users u ON u.id = r.teacher_id
		WHERE r.teacher_id = $1 ORDER BY r.created_at DESC`
	rows, err := r.pool.Query(ctx, q, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *room)
	}
	return list, rows.Err()
}

// ListByParticipant returns the rooms a user has joined, most recent first.
func (r *Repository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM room_participants p
		JOIN rooms r ON r.id = p.room_id
		JOIN users u ON u.id = r.teacher_id
		WHERE p.user_id = $1 ORDER BY p.joined_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *room)
	}
	return list, rows.Err()
}

// Update applies a partial update (nil fields keep their current value) and
// returns the updated room.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, description *string, isActive *bool) (*models.Room, error) {
	const q = `UPDATE rooms SET
		title = COALESCE($1, title),
		description = COALESCE($2, description),
		is_active = COALESCE($3, is_active),
		updated_at = NOW()
		WHERE id = $4`
	tag, err := r.pool.Exec(ctx, q, title, description, isActive, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a room; dependent polls, responses and participants cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// AddParticipant records a user's membership in a room. Returns
// models.ErrDuplicate if the (room, user) pair already has a record; the
// uniqueness constraint, not the caller's pre-check, enforces the invariant.
func (r *Repository) AddParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	const q = `INSERT INTO room_participants (room_id, user_id) VALUES ($1, $2)`
	_, err := r.pool.Exec(ctx, q, roomID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrDuplicate
		}
		return err
	}
	return nil
}

// HasParticipant reports whether a membership record exists for (room, user).
func (r *Repository) HasParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID).Scan(&exists)
	return exists, err
}

// RemoveParticipant deletes any membership record for (room, user). Removing
// an absent record is not an error.
func (r *Repository) RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM room_participants WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	return err
}

// ListParticipants returns a room's participants with user summaries, in join order.
func (r *Repository) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.RoomParticipant, error) {
	const q = `SELECT p.id, p.room_id, p.user_id, p.joined_at, u.id, u.username, u.role
		FROM room_participants p JOIN users u ON u.id = p.user_id
		WHERE p.room_id = $1 ORDER BY p.joined_at`
	rows, err := r.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.RoomParticipant
	for rows.Next() {
		var p models.RoomParticipant
		var u models.UserPublic
		if err := rows.Scan(&p.ID, &p.RoomID, &p.UserID, &p.JoinedAt, &u.ID, &u.Username, &u.Role); err != nil {
			return nil, err
		}
		p.User = &u
		list = append(list, p)
	}
	return list, rows.Err()
}
