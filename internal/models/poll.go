package models

import (
	"time"

	"github.com/google/uuid"
)

// Poll is a multiple-choice question scoped to a room. Options is an ordered
// list of at least two entries; CorrectOption is always a member of Options.
type Poll struct {
	ID            uuid.UUID `json:"id"`
	RoomID        uuid.UUID `json:"roomId"`
	Question      string    `json:"question"`
	Options       []string  `json:"options"`
	CorrectOption string    `json:"correctOption"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	ResponseCount int       `json:"totalResponses,omitempty"`
}

// HasOption reports whether option is a member of the poll's option list.
func (p *Poll) HasOption(option string) bool {
	for _, o := range p.Options {
		if o == option {
			return true
		}
	}
	return false
}

// PollResponse is a participant's single recorded answer to a poll.
// At most one response exists per (poll, user) pair; responses are immutable.
type PollResponse struct {
	ID        uuid.UUID   `json:"id"`
	PollID    uuid.UUID   `json:"pollId"`
	UserID    uuid.UUID   `json:"userId"`
	Option    string      `json:"option"`
	CreatedAt time.Time   `json:"createdAt"`
	User      *UserPublic `json:"user,omitempty"`
}
