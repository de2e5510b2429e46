package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpoll/backend/internal/models"
)

// Inbound event names.
const (
	EventCreateRoom   = "create-room"
	EventJoinRoom     = "join-room"
	EventPostQuestion = "post-question"
	EventPollSubmit   = "poll-submit"
	EventEndPoll      = "end-poll"
	EventLeaveRoom    = "leave-room"
)

// Outcome event names.
const (
	EventRoomCreated       = "room-created"
	EventRoomJoined        = "room-joined"
	EventParticipantJoined = "participant-joined"
	EventQuestionPosted    = "question-posted"
	EventPollResponse      = "poll-response"
	EventPollEnded         = "poll-ended"
	EventParticipantLeft   = "participant-left"
)

// RoomStore is the slice of room persistence the coordinator needs;
// satisfied by rooms.Repository.
type RoomStore interface {
	Create(ctx context.Context, roomCode, title string, description *string, teacherID uuid.UUID) (*models.Room, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetByCode(ctx context.Context, roomCode string) (*models.Room, error)
	AddParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	HasParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.RoomParticipant, error)
}

// PollStore is the slice of poll persistence the coordinator needs;
// satisfied by polls.Repository.
type PollStore interface {
	Create(ctx context.Context, p *models.Poll) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	GetInRoom(ctx context.Context, id, roomID uuid.UUID) (*models.Poll, error)
	HasResponse(ctx context.Context, pollID, userID uuid.UUID) (bool, error)
	CreateResponse(ctx context.Context, resp *models.PollResponse) error
	ListResponses(ctx context.Context, pollID uuid.UUID) ([]models.PollResponse, error)
}

// Coordinator owns the room and poll lifecycles over the realtime transport:
// it validates every inbound event against stored state, persists changes and
// fans the outcome back out through the hub. Constructed once at startup and
// shared by all connections.
type Coordinator struct {
	rooms  RoomStore
	polls  PollStore
	hub    *Hub
	logger *zap.Logger
}

// NewCoordinator creates the coordinator.
func NewCoordinator(rooms RoomStore, polls PollStore, hub *Hub, logger *zap.Logger) *Coordinator {
	return &Coordinator{rooms: rooms, polls: polls, hub: hub, logger: logger}
}

func fail(err string) map[string]interface{} {
	return map[string]interface{}{"success": false, "error": err}
}

// requireTeacher gates teacher-only events. A session without the TEACHER
// role gets an access-denied reply and the handler does not run.
func (co *Coordinator) requireTeacher(s Session, replyEvent string) bool {
	if s.User().Role != models.RoleTeacher {
		s.Emit(replyEvent, fail("Access denied. Teacher role required"))
		return false
	}
	return true
}

type createRoomPayload struct {
	Title     string `json:"title"`
	TeacherID string `json:"teacherId"`
	RoomCode  string `json:"roomCode"`
}

// CreateRoom handles the create-room event: persists the room with the
// issuing teacher as owner, joins the connection to the room's broadcast
// group and replies to the requester only.
func (co *Coordinator) CreateRoom(ctx context.Context, s Session, data json.RawMessage) {
	if !co.requireTeacher(s, EventRoomCreated) {
		return
	}

	var p createRoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Title == "" || p.TeacherID == "" || p.RoomCode == "" {
		s.Emit(EventRoomCreated, fail("Missing required fields: title, teacherId, or roomCode"))
		return
	}

	teacherID, err := uuid.Parse(p.TeacherID)
	if err != nil {
		s.Emit(EventRoomCreated, fail("Failed to create room"))
		return
	}

	room, err := co.rooms.Create(ctx, p.RoomCode, p.Title, nil, teacherID)
	if err != nil {
		co.logger.Error("create room", zap.Error(err), zap.String("room_code", p.RoomCode))
		s.Emit(EventRoomCreated, fail("Failed to create room"))
		return
	}

	co.hub.Join(room.RoomCode, s)

	s.Emit(EventRoomCreated, map[string]interface{}{
		"success": true,
		"room": map[string]interface{}{
			"id":          room.ID,
			"roomCode":    room.RoomCode,
			"title":       room.Title,
			"description": room.Description,
			"teacher":     room.Teacher,
		},
	})
	co.logger.Info("room created", zap.String("room_code", room.RoomCode), zap.String("teacher_id", teacherID.String()))
}

type joinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
}

// JoinRoom handles the join-room event: records the participant (idempotent),
// joins the connection to the broadcast group, replies with the full room
// state and notifies the other group members.
func (co *Coordinator) JoinRoom(ctx context.Context, s Session, data json.RawMessage) {
	var p joinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.Emit(EventRoomJoined, fail("Failed to join room"))
		return
	}

	room, err := co.rooms.GetByCode(ctx, p.RoomCode)
	if errors.Is(err, models.ErrNotFound) {
		s.Emit(EventRoomJoined, fail("Room not found"))
		return
	}
	if err != nil {
		co.logger.Error("join room lookup", zap.Error(err))
		s.Emit(EventRoomJoined, fail("Failed to join room"))
		return
	}
	if !room.IsActive {
		s.Emit(EventRoomJoined, fail("Room is not active"))
		return
	}

	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		s.Emit(EventRoomJoined, fail("Failed to join room"))
		return
	}

	exists, err := co.rooms.HasParticipant(ctx, room.ID, userID)
	if err != nil {
		co.logger.Error("join room participant check", zap.Error(err))
		s.Emit(EventRoomJoined, fail("Failed to join room"))
		return
	}
	if !exists {
		// The pre-check is advisory; the (room, user) uniqueness constraint
		// decides a racing join and a duplicate create is a benign rejoin.
		err := co.rooms.AddParticipant(ctx, room.ID, userID)
		if err != nil && !errors.Is(err, models.ErrDuplicate) {
			co.logger.Error("join room add participant", zap.Error(err))
			s.Emit(EventRoomJoined, fail("Failed to join room"))
			return
		}
	}

	co.hub.Join(room.RoomCode, s)

	participants, err := co.rooms.ListParticipants(ctx, room.ID)
	if err != nil {
		co.logger.Error("join room list participants", zap.Error(err))
		s.Emit(EventRoomJoined, fail("Failed to join room"))
		return
	}

	s.Emit(EventRoomJoined, map[string]interface{}{
		"success": true,
		"room": map[string]interface{}{
			"id":           room.ID,
			"roomCode":     room.RoomCode,
			"title":        room.Title,
			"description":  room.Description,
			"teacher":      room.Teacher,
			"participants": participants,
		},
	})

	var joinedUser *models.UserPublic
	for i := range participants {
		if participants[i].UserID == userID {
			joinedUser = participants[i].User
			break
		}
	}
	co.hub.BroadcastExcept(room.RoomCode, s.ID(), EventParticipantJoined, map[string]interface{}{
		"roomCode":    room.RoomCode,
		"participant": joinedUser,
	})
	co.logger.Info("user joined room", zap.String("user_id", userID.String()), zap.String("room_code", room.RoomCode))
}

type postQuestionPayload struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correctOption"`
	RoomID        string   `json:"roomId"`
	RoomCode      string   `json:"roomCode"`
}

// PostQuestion handles the post-question event: validates the question
// against the room's current state, persists a new poll and broadcasts it to
// the requester and every other group member identically.
func (co *Coordinator) PostQuestion(ctx context.Context, s Session, data json.RawMessage) {
	if !co.requireTeacher(s, EventQuestionPosted) {
		return
	}

	var p postQuestionPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Question == "" || p.Options == nil || p.CorrectOption == "" || p.RoomID == "" || p.RoomCode == "" {
		s.Emit(EventQuestionPosted, fail("Missing required fields: question, options, correctOption, roomId, or roomCode"))
		return
	}
	if len(p.Options) < 2 {
		s.Emit(EventQuestionPosted, fail("Options must be an array with at least 2 items"))
		return
	}
	if !containsOption(p.Options, p.CorrectOption) {
		s.Emit(EventQuestionPosted, fail("Correct option must be one of the provided options"))
		return
	}

	roomID, err := uuid.Parse(p.RoomID)
	if err != nil {
		s.Emit(EventQuestionPosted, fail("Room not found"))
		return
	}
	room, err := co.rooms.GetByID(ctx, roomID)
	if errors.Is(err, models.ErrNotFound) {
		s.Emit(EventQuestionPosted, fail("Room not found"))
		return
	}
	if err != nil {
		co.logger.Error("post question room lookup", zap.Error(err))
		s.Emit(EventQuestionPosted, fail("Failed to post question"))
		return
	}
	if !room.IsActive {
		s.Emit(EventQuestionPosted, fail("Room is not active"))
		return
	}
	// The payload carries both the room id and the code the client believes
	// it is in; a mismatch means stale client state.
	if room.RoomCode != p.RoomCode {
		s.Emit(EventQuestionPosted, fail("Invalid room code"))
		return
	}

	poll := &models.Poll{
		RoomID:        room.ID,
		Question:      p.Question,
		Options:       p.Options,
		CorrectOption: p.CorrectOption,
	}
	if err := co.polls.Create(ctx, poll); err != nil {
		co.logger.Error("post question create poll", zap.Error(err))
		s.Emit(EventQuestionPosted, fail("Failed to post question"))
		return
	}

	posted := map[string]interface{}{
		"success": true,
		"question": map[string]interface{}{
			"id":            poll.ID,
			"question":      poll.Question,
			"options":       poll.Options,
			"correctOption": poll.CorrectOption,
		},
	}
	s.Emit(EventQuestionPosted, posted)
	co.hub.BroadcastExcept(room.RoomCode, s.ID(), EventQuestionPosted, posted)
	co.logger.Info("question posted", zap.String("room_code", room.RoomCode), zap.String("poll_id", poll.ID.String()))
}

type pollSubmitPayload struct {
	RoomCode string `json:"roomCode"`
	PollID   string `json:"pollId"`
	UserID   string `json:"userId"`
	Option   string `json:"option"`
}

// SubmitResponse handles the poll-submit event: records the user's single
// answer and replies to the requester only. Individual answers are never
// broadcast while voting is open.
func (co *Coordinator) SubmitResponse(ctx context.Context, s Session, data json.RawMessage) {
	var p pollSubmitPayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.Emit(EventPollResponse, fail("Failed to submit response"))
		return
	}

	room, err := co.rooms.GetByCode(ctx, p.RoomCode)
	if errors.Is(err, models.ErrNotFound) {
		s.Emit(EventPollResponse, fail("Room not found"))
		return
	}
	if err != nil {
		co.logger.Error("poll submit room lookup", zap.Error(err))
		s.Emit(EventPollResponse, fail("Failed to submit response"))
		return
	}
	if !room.IsActive {
		s.Emit(EventPollResponse, fail("Room is not active"))
		return
	}

	pollID, err := uuid.Parse(p.PollID)
	if err != nil {
		s.Emit(EventPollResponse, fail("Poll not found"))
		return
	}
	poll, err := co.polls.GetByID(ctx, pollID)
	if errors.Is(err, models.ErrNotFound) {
		s.Emit(EventPollResponse, fail("Poll not found"))
		return
	}
	if err != nil {
		co.logger.Error("poll submit poll lookup", zap.Error(err))
		s.Emit(EventPollResponse, fail("Failed to submit response"))
		return
	}

	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		s.Emit(EventPollResponse, fail("Failed to submit response"))
		return
	}

	answered, err := co.polls.HasResponse(ctx, poll.ID, userID)
	if err != nil {
		co.logger.Error("poll submit response check", zap.Error(err))
		s.Emit(EventPollResponse, fail("Failed to submit response"))
		return
	}
	if answered {
		s.Emit(EventPollResponse, fail("You have already submitted a response"))
		return
	}

	resp := &models.PollResponse{PollID: poll.ID, UserID: userID, Option: p.Option}
	if err := co.polls.CreateResponse(ctx, resp); err != nil {
		// Losing the race to another submission is the same domain outcome
		// as the pre-check catching it.
		if errors.Is(err, models.ErrDuplicate) {
			s.Emit(EventPollResponse, fail("You have already submitted a response"))
			return
		}
		co.logger.Error("poll submit create response", zap.Error(err))
		s.Emit(EventPollResponse, fail("Failed to submit response"))
		return
	}

	s.Emit(EventPollResponse, map[string]interface{}{
		"success": true,
		"response": map[string]interface{}{
			"id":     resp.ID,
			"pollId": resp.PollID,
			"userId": resp.UserID,
			"option": resp.Option,
		},
	})
}

type endPollPayload struct {
	RoomCode  string `json:"roomCode"`
	PollID    string `json:"pollId"`
	TeacherID string `json:"teacherId"`
}

// EndPoll handles the end-poll event: partitions the poll's responses into
// correct and incorrect sets and replies to the requesting teacher only.
// Participants do not learn results from this event.
func (co *Coordinator) EndPoll(ctx context.Context, s Session, data json.RawMessage) {
	if !co.requireTeacher(s, EventPollEnded) {
		return
	}

	var p endPollPayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.Emit(EventPollEnded, fail("Failed to end poll"))
		return
	}

	room, err := co.rooms.GetByCode(ctx, p.RoomCode)
	if errors.Is(err, models.ErrNotFound) {
		s.Emit(EventPollEnded, fail("room not found"))
		return
	}
	if err != nil {
		co.logger.Error("end poll room lookup", zap.Error(err))
		s.Emit(EventPollEnded, fail("Failed to end poll"))
		return
	}
	if !room.IsActive {
		s.Emit(EventPollEnded, fail("room is not active"))
		return
	}
	if room.TeacherID.String() != p.TeacherID {
		s.Emit(EventPollEnded, fail("you are not the teacher of this room"))
		return
	}

	pollID, err := uuid.Parse(p.PollID)
	if err != nil {
		s.Emit(EventPollEnded, fail("poll not found"))
		return
	}
	poll, err := co.polls.GetInRoom(ctx, pollID, room.ID)
	if errors.Is(err, models.ErrNotFound) {
		s.Emit(EventPollEnded, fail("poll not found"))
		return
	}
	if err != nil {
		co.logger.Error("end poll poll lookup", zap.Error(err))
		s.Emit(EventPollEnded, fail("Failed to end poll"))
		return
	}
	if !poll.IsActive {
		s.Emit(EventPollEnded, fail("poll is not active"))
		return
	}

	responses, err := co.polls.ListResponses(ctx, poll.ID)
	if err != nil {
		co.logger.Error("end poll list responses", zap.Error(err))
		s.Emit(EventPollEnded, fail("Failed to end poll"))
		return
	}
	if len(responses) == 0 {
		s.Emit(EventPollEnded, fail("no responses found"))
		return
	}

	correct := make([]models.PollResponse, 0, len(responses))
	incorrect := make([]models.PollResponse, 0)
	for _, resp := range responses {
		if resp.Option == poll.CorrectOption {
			correct = append(correct, resp)
		} else {
			incorrect = append(incorrect, resp)
		}
	}

	s.Emit(EventPollEnded, map[string]interface{}{
		"success":            true,
		"poll":               poll,
		"correctResponses":   correct,
		"incorrectResponses": incorrect,
	})
	co.logger.Info("poll ended", zap.String("room_code", room.RoomCode), zap.String("poll_id", poll.ID.String()),
		zap.Int("correct", len(correct)), zap.Int("incorrect", len(incorrect)))
}

type leaveRoomPayload struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
}

// LeaveRoom handles the leave-room event. Best-effort from the client's
// perspective: the leaving connection never gets a reply, and an unknown
// room is a silent no-op.
func (co *Coordinator) LeaveRoom(ctx context.Context, s Session, data json.RawMessage) {
	var p leaveRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	room, err := co.rooms.GetByCode(ctx, p.RoomCode)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			co.logger.Error("leave room lookup", zap.Error(err))
		}
		return
	}

	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		return
	}
	if err := co.rooms.RemoveParticipant(ctx, room.ID, userID); err != nil {
		co.logger.Error("leave room remove participant", zap.Error(err))
		return
	}

	co.hub.Leave(room.RoomCode, s)

	co.hub.BroadcastExcept(room.RoomCode, s.ID(), EventParticipantLeft, map[string]interface{}{
		"roomCode": room.RoomCode,
		"userId":   userID,
	})
	co.logger.Info("user left room", zap.String("user_id", userID.String()), zap.String("room_code", room.RoomCode))
}

func containsOption(options []string, option string) bool {
	for _, o := range options {
		if o == option {
			return true
		}
	}
	return false
}
