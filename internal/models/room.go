package models

import (
	"time"

	"github.com/google/uuid"
)

// Room is a teacher-owned session identified by a short join code.
// The code is unique while the room exists; it is not reserved after deletion.
type Room struct {
	ID          uuid.UUID  `json:"id"`
	RoomCode    string     `json:"roomCode"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	TeacherID   uuid.UUID  `json:"teacherId"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Teacher     *UserPublic `json:"teacher,omitempty"`
}

// RoomParticipant is a student's membership record in a room.
// At most one record exists per (room, user) pair.
type RoomParticipant struct {
	ID       uuid.UUID   `json:"id"`
	RoomID   uuid.UUID   `json:"roomId"`
	UserID   uuid.UUID   `json:"userId"`
	JoinedAt time.Time   `json:"joinedAt"`
	User     *UserPublic `json:"user,omitempty"`
}
