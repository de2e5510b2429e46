package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpoll/backend/internal/models"
)

type memRoomStore struct {
	rooms        map[uuid.UUID]*models.Room
	participants map[uuid.UUID][]models.RoomParticipant
	users        map[uuid.UUID]models.UserPublic
	createCalls  int
}

func newMemRoomStore() *memRoomStore {
	return &memRoomStore{
		rooms:        make(map[uuid.UUID]*models.Room),
		participants: make(map[uuid.UUID][]models.RoomParticipant),
		users:        make(map[uuid.UUID]models.UserPublic),
	}
}

func (m *memRoomStore) addUser(username string, role models.Role) uuid.UUID {
	id := uuid.New()
	m.users[id] = models.UserPublic{ID: id, Username: username, Role: role}
	return id
}

func (m *memRoomStore) Create(_ context.Context, roomCode, title string, description *string, teacherID uuid.UUID) (*models.Room, error) {
	m.createCalls++
	for _, r := range m.rooms {
		if r.RoomCode == roomCode {
			return nil, models.ErrDuplicate
		}
	}
	teacher := m.users[teacherID]
	room := &models.Room{
		ID:          uuid.New(),
		RoomCode:    roomCode,
		Title:       title,
		Description: description,
		TeacherID:   teacherID,
		IsActive:    true,
		Teacher:     &teacher,
	}
	m.rooms[room.ID] = room
	return room, nil
}

func (m *memRoomStore) GetByID(_ context.Context, id uuid.UUID) (*models.Room, error) {
	if r, ok := m.rooms[id]; ok {
		return r, nil
	}
	return nil, models.ErrNotFound
}

func (m *memRoomStore) GetByCode(_ context.Context, roomCode string) (*models.Room, error) {
	for _, r := range m.rooms {
		if r.RoomCode == roomCode {
			return r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memRoomStore) AddParticipant(_ context.Context, roomID, userID uuid.UUID) error {
	for _, p := range m.participants[roomID] {
		if p.UserID == userID {
			return models.ErrDuplicate
		}
	}
	user := m.users[userID]
	m.participants[roomID] = append(m.participants[roomID], models.RoomParticipant{
		ID:     uuid.New(),
		RoomID: roomID,
		UserID: userID,
		User:   &user,
	})
	return nil
}

func (m *memRoomStore) HasParticipant(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	for _, p := range m.participants[roomID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRoomStore) RemoveParticipant(_ context.Context, roomID, userID uuid.UUID) error {
	list := m.participants[roomID]
	for i, p := range list {
		if p.UserID == userID {
			m.participants[roomID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memRoomStore) ListParticipants(_ context.Context, roomID uuid.UUID) ([]models.RoomParticipant, error) {
	return m.participants[roomID], nil
}

type memPollStore struct {
	polls     map[uuid.UUID]*models.Poll
	responses map[uuid.UUID][]models.PollResponse
}

func newMemPollStore() *memPollStore {
	return &memPollStore{
		polls:     make(map[uuid.UUID]*models.Poll),
		responses: make(map[uuid.UUID][]models.PollResponse),
	}
}

func (m *memPollStore) Create(_ context.Context, p *models.Poll) error {
	p.ID = uuid.New()
	p.IsActive = true
	m.polls[p.ID] = p
	return nil
}

func (m *memPollStore) GetByID(_ context.Context, id uuid.UUID) (*models.Poll, error) {
	if p, ok := m.polls[id]; ok {
		return p, nil
	}
	return nil, models.ErrNotFound
}

func (m *memPollStore) GetInRoom(_ context.Context, id, roomID uuid.UUID) (*models.Poll, error) {
	if p, ok := m.polls[id]; ok && p.RoomID == roomID {
		return p, nil
	}
	return nil, models.ErrNotFound
}

func (m *memPollStore) HasResponse(_ context.Context, pollID, userID uuid.UUID) (bool, error) {
	for _, r := range m.responses[pollID] {
		if r.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPollStore) CreateResponse(_ context.Context, resp *models.PollResponse) error {
	for _, r := range m.responses[resp.PollID] {
		if r.UserID == resp.UserID {
			return models.ErrDuplicate
		}
	}
	resp.ID = uuid.New()
	m.responses[resp.PollID] = append(m.responses[resp.PollID], *resp)
	return nil
}

func (m *memPollStore) ListResponses(_ context.Context, pollID uuid.UUID) ([]models.PollResponse, error) {
	return m.responses[pollID], nil
}

type fixture struct {
	rooms *memRoomStore
	polls *memPollStore
	hub   *Hub
	co    *Coordinator
}

func newFixture() *fixture {
	rooms := newMemRoomStore()
	polls := newMemPollStore()
	hub := NewHub("test", zap.NewNop(), nil, nil)
	return &fixture{
		rooms: rooms,
		polls: polls,
		hub:   hub,
		co:    NewCoordinator(rooms, polls, hub, zap.NewNop()),
	}
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func teacherSession(f *fixture) (*fakeSession, uuid.UUID) {
	id := f.rooms.addUser("ms-park", models.RoleTeacher)
	s := &fakeSession{id: uuid.New().String(), user: f.rooms.users[id]}
	return s, id
}

func studentSession(f *fixture, name string) (*fakeSession, uuid.UUID) {
	id := f.rooms.addUser(name, models.RoleStudent)
	s := &fakeSession{id: uuid.New().String(), user: f.rooms.users[id]}
	return s, id
}

func (f *fixture) createRoom(t *testing.T, s *fakeSession, teacherID uuid.UUID, code string) *models.Room {
	t.Helper()
	f.co.CreateRoom(context.Background(), s, raw(t, map[string]interface{}{
		"title":     "Algebra review",
		"teacherId": teacherID.String(),
		"roomCode":  code,
	}))
	room, err := f.rooms.GetByCode(context.Background(), code)
	if err != nil {
		t.Fatalf("room %s not created: %v", code, err)
	}
	return room
}

func assertError(t *testing.T, s *fakeSession, event, want string) {
	t.Helper()
	e, ok := s.lastFor(event)
	if !ok {
		t.Fatalf("no %s reply", event)
	}
	m, ok := e.payload.(map[string]interface{})
	if !ok {
		t.Fatalf("%s payload is %T, want map", event, e.payload)
	}
	if m["success"] != false {
		t.Fatalf("%s success = %v, want false", event, m["success"])
	}
	if m["error"] != want {
		t.Fatalf("%s error = %q, want %q", event, m["error"], want)
	}
}

func assertSuccess(t *testing.T, s *fakeSession, event string) map[string]interface{} {
	t.Helper()
	e, ok := s.lastFor(event)
	if !ok {
		t.Fatalf("no %s reply", event)
	}
	m, ok := e.payload.(map[string]interface{})
	if !ok {
		t.Fatalf("%s payload is %T, want map", event, e.payload)
	}
	if m["success"] != true {
		t.Fatalf("%s success = %v: %v", event, m["success"], m["error"])
	}
	return m
}

func TestCreateRoom(t *testing.T) {
	f := newFixture()
	s, teacherID := teacherSession(f)

	room := f.createRoom(t, s, teacherID, "482913")

	reply := assertSuccess(t, s, EventRoomCreated)
	got := reply["room"].(map[string]interface{})
	if got["roomCode"] != "482913" {
		t.Fatalf("roomCode = %v", got["roomCode"])
	}
	if !room.IsActive {
		t.Fatal("new room is not active")
	}
	if f.hub.GroupSize("482913") != 1 {
		t.Fatal("creator not joined to broadcast group")
	}
}

func TestCreateRoomMissingFields(t *testing.T) {
	f := newFixture()
	s, _ := teacherSession(f)

	f.co.CreateRoom(context.Background(), s, raw(t, map[string]interface{}{"title": "No code"}))
	assertError(t, s, EventRoomCreated, "Missing required fields: title, teacherId, or roomCode")
	if f.rooms.createCalls != 0 {
		t.Fatal("store touched on validation failure")
	}
}

func TestCreateRoomRequiresTeacherRole(t *testing.T) {
	f := newFixture()
	s, studentID := studentSession(f, "jae")

	f.co.CreateRoom(context.Background(), s, raw(t, map[string]interface{}{
		"title":     "Sneaky room",
		"teacherId": studentID.String(),
		"roomCode":  "111111",
	}))
	assertError(t, s, EventRoomCreated, "Access denied. Teacher role required")
	if f.rooms.createCalls != 0 {
		t.Fatal("store touched despite role denial")
	}
}

func TestCreateRoomDuplicateCode(t *testing.T) {
	f := newFixture()
	s, teacherID := teacherSession(f)
	f.createRoom(t, s, teacherID, "482913")

	s2, teacher2 := teacherSession(f)
	f.co.CreateRoom(context.Background(), s2, raw(t, map[string]interface{}{
		"title":     "Other class",
		"teacherId": teacher2.String(),
		"roomCode":  "482913",
	}))
	assertError(t, s2, EventRoomCreated, "Failed to create room")
}

func TestJoinRoom(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")

	ss, studentID := studentSession(f, "jae")
	f.co.JoinRoom(context.Background(), ss, raw(t, map[string]interface{}{
		"roomCode": "482913",
		"userId":   studentID.String(),
	}))

	reply := assertSuccess(t, ss, EventRoomJoined)
	got := reply["room"].(map[string]interface{})
	if got["roomCode"] != "482913" {
		t.Fatalf("roomCode = %v", got["roomCode"])
	}
	participants := got["participants"].([]models.RoomParticipant)
	if len(participants) != 1 || participants[0].UserID != studentID {
		t.Fatalf("participants = %+v", participants)
	}
	if f.hub.GroupSize("482913") != 2 {
		t.Fatalf("GroupSize = %d, want 2", f.hub.GroupSize("482913"))
	}

	// The teacher is told about the new participant; the joiner is not.
	if ts.received(EventParticipantJoined) != 1 {
		t.Fatal("teacher did not receive participant-joined")
	}
	if ss.received(EventParticipantJoined) != 0 {
		t.Fatal("joiner received its own participant-joined")
	}
	_ = room
}

func TestJoinRoomNotFound(t *testing.T) {
	f := newFixture()
	ss, studentID := studentSession(f, "jae")

	f.co.JoinRoom(context.Background(), ss, raw(t, map[string]interface{}{
		"roomCode": "000000",
		"userId":   studentID.String(),
	}))
	assertError(t, ss, EventRoomJoined, "Room not found")
	if len(f.rooms.participants) != 0 {
		t.Fatal("participant recorded for missing room")
	}
}

func TestJoinRoomInactive(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")
	room.IsActive = false

	ss, studentID := studentSession(f, "jae")
	f.co.JoinRoom(context.Background(), ss, raw(t, map[string]interface{}{
		"roomCode": "482913",
		"userId":   studentID.String(),
	}))
	assertError(t, ss, EventRoomJoined, "Room is not active")
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")

	ss, studentID := studentSession(f, "jae")
	payload := raw(t, map[string]interface{}{
		"roomCode": "482913",
		"userId":   studentID.String(),
	})
	f.co.JoinRoom(context.Background(), ss, payload)
	f.co.JoinRoom(context.Background(), ss, payload)

	if n := ss.received(EventRoomJoined); n != 2 {
		t.Fatalf("room-joined replies = %d, want 2", n)
	}
	assertSuccess(t, ss, EventRoomJoined)
	if len(f.rooms.participants[room.ID]) != 1 {
		t.Fatalf("participant records = %d, want 1", len(f.rooms.participants[room.ID]))
	}
}

func TestPostQuestion(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")

	ss, studentID := studentSession(f, "jae")
	f.co.JoinRoom(context.Background(), ss, raw(t, map[string]interface{}{
		"roomCode": "482913", "userId": studentID.String(),
	}))

	f.co.PostQuestion(context.Background(), ts, raw(t, map[string]interface{}{
		"question":      "What is 2+2?",
		"options":       []string{"3", "4", "5"},
		"correctOption": "4",
		"roomId":        room.ID.String(),
		"roomCode":      "482913",
	}))

	reply := assertSuccess(t, ts, EventQuestionPosted)
	q := reply["question"].(map[string]interface{})
	if q["correctOption"] != "4" {
		t.Fatalf("correctOption = %v", q["correctOption"])
	}

	// Every group member gets the identical payload, requester included.
	se, ok := ss.lastFor(EventQuestionPosted)
	if !ok {
		t.Fatal("student did not receive question-posted")
	}
	te, _ := ts.lastFor(EventQuestionPosted)
	sb := raw(t, se.payload)
	tb := raw(t, te.payload)
	if string(sb) != string(tb) {
		t.Fatalf("student and teacher payloads differ:\n%s\n%s", sb, tb)
	}
}

func TestPostQuestionValidation(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")

	base := func(over map[string]interface{}) map[string]interface{} {
		m := map[string]interface{}{
			"question":      "What is 2+2?",
			"options":       []string{"3", "4"},
			"correctOption": "4",
			"roomId":        room.ID.String(),
			"roomCode":      "482913",
		}
		for k, v := range over {
			m[k] = v
		}
		return m
	}

	cases := []struct {
		name    string
		payload map[string]interface{}
		want    string
	}{
		{"missing question", base(map[string]interface{}{"question": ""}),
			"Missing required fields: question, options, correctOption, roomId, or roomCode"},
		{"single option", base(map[string]interface{}{"options": []string{"4"}}),
			"Options must be an array with at least 2 items"},
		{"correct option not listed", base(map[string]interface{}{"correctOption": "7"}),
			"Correct option must be one of the provided options"},
		{"unknown room", base(map[string]interface{}{"roomId": uuid.New().String()}),
			"Room not found"},
		{"stale room code", base(map[string]interface{}{"roomCode": "999999"}),
			"Invalid room code"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.co.PostQuestion(context.Background(), ts, raw(t, tc.payload))
			assertError(t, ts, EventQuestionPosted, tc.want)
		})
	}
	if len(f.polls.polls) != 0 {
		t.Fatalf("%d polls created by invalid requests", len(f.polls.polls))
	}
}

func TestPostQuestionRequiresTeacherRole(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")

	ss, _ := studentSession(f, "jae")
	f.co.PostQuestion(context.Background(), ss, raw(t, map[string]interface{}{
		"question":      "What is 2+2?",
		"options":       []string{"3", "4"},
		"correctOption": "4",
		"roomId":        room.ID.String(),
		"roomCode":      "482913",
	}))
	assertError(t, ss, EventQuestionPosted, "Access denied. Teacher role required")
	if len(f.polls.polls) != 0 {
		t.Fatal("student created a poll")
	}
}

func postPoll(t *testing.T, f *fixture, ts *fakeSession, room *models.Room) uuid.UUID {
	t.Helper()
	f.co.PostQuestion(context.Background(), ts, raw(t, map[string]interface{}{
		"question":      "What is 2+2?",
		"options":       []string{"3", "4", "5"},
		"correctOption": "4",
		"roomId":        room.ID.String(),
		"roomCode":      room.RoomCode,
	}))
	for id := range f.polls.polls {
		return id
	}
	t.Fatal("poll not created")
	return uuid.Nil
}

func TestSubmitResponse(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")
	pollID := postPoll(t, f, ts, room)

	ss, studentID := studentSession(f, "jae")
	f.co.SubmitResponse(context.Background(), ss, raw(t, map[string]interface{}{
		"roomCode": "482913",
		"pollId":   pollID.String(),
		"userId":   studentID.String(),
		"option":   "4",
	}))

	reply := assertSuccess(t, ss, EventPollResponse)
	resp := reply["response"].(map[string]interface{})
	if resp["option"] != "4" {
		t.Fatalf("option = %v", resp["option"])
	}
	// Answers stay private while voting is open.
	if ts.received(EventPollResponse) != 0 {
		t.Fatal("response broadcast to the room")
	}
}

func TestSubmitResponseDuplicateRejected(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")
	pollID := postPoll(t, f, ts, room)

	ss, studentID := studentSession(f, "jae")
	payload := raw(t, map[string]interface{}{
		"roomCode": "482913",
		"pollId":   pollID.String(),
		"userId":   studentID.String(),
		"option":   "4",
	})
	f.co.SubmitResponse(context.Background(), ss, payload)

	second := raw(t, map[string]interface{}{
		"roomCode": "482913",
		"pollId":   pollID.String(),
		"userId":   studentID.String(),
		"option":   "5",
	})
	f.co.SubmitResponse(context.Background(), ss, second)
	assertError(t, ss, EventPollResponse, "You have already submitted a response")

	// First answer stands.
	responses := f.polls.responses[pollID]
	if len(responses) != 1 || responses[0].Option != "4" {
		t.Fatalf("responses = %+v", responses)
	}
}

func TestSubmitResponseErrors(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")
	pollID := postPoll(t, f, ts, room)

	ss, studentID := studentSession(f, "jae")

	t.Run("room not found", func(t *testing.T) {
		f.co.SubmitResponse(context.Background(), ss, raw(t, map[string]interface{}{
			"roomCode": "000000", "pollId": pollID.String(), "userId": studentID.String(), "option": "4",
		}))
		assertError(t, ss, EventPollResponse, "Room not found")
	})
	t.Run("poll not found", func(t *testing.T) {
		f.co.SubmitResponse(context.Background(), ss, raw(t, map[string]interface{}{
			"roomCode": "482913", "pollId": uuid.New().String(), "userId": studentID.String(), "option": "4",
		}))
		assertError(t, ss, EventPollResponse, "Poll not found")
	})
	t.Run("room not active", func(t *testing.T) {
		room.IsActive = false
		defer func() { room.IsActive = true }()
		f.co.SubmitResponse(context.Background(), ss, raw(t, map[string]interface{}{
			"roomCode": "482913", "pollId": pollID.String(), "userId": studentID.String(), "option": "4",
		}))
		assertError(t, ss, EventPollResponse, "Room is not active")
	})
	if len(f.polls.responses[pollID]) != 0 {
		t.Fatal("invalid submissions recorded responses")
	}
}

func TestEndPoll(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")
	pollID := postPoll(t, f, ts, room)

	answers := map[string]string{"jae": "4", "mina": "3", "leo": "4"}
	for name, option := range answers {
		ss, studentID := studentSession(f, name)
		f.co.SubmitResponse(context.Background(), ss, raw(t, map[string]interface{}{
			"roomCode": "482913", "pollId": pollID.String(), "userId": studentID.String(), "option": option,
		}))
		assertSuccess(t, ss, EventPollResponse)
	}

	f.co.EndPoll(context.Background(), ts, raw(t, map[string]interface{}{
		"roomCode":  "482913",
		"pollId":    pollID.String(),
		"teacherId": teacherID.String(),
	}))

	reply := assertSuccess(t, ts, EventPollEnded)
	correct := reply["correctResponses"].([]models.PollResponse)
	incorrect := reply["incorrectResponses"].([]models.PollResponse)
	if len(correct) != 2 || len(incorrect) != 1 {
		t.Fatalf("partition = %d correct / %d incorrect, want 2/1", len(correct), len(incorrect))
	}
	if len(correct)+len(incorrect) != len(f.polls.responses[pollID]) {
		t.Fatal("partition is not exhaustive")
	}
	for _, r := range correct {
		if r.Option != "4" {
			t.Fatalf("correct set contains option %q", r.Option)
		}
	}
	for _, r := range incorrect {
		if r.Option == "4" {
			t.Fatalf("incorrect set contains the correct option")
		}
	}
}

func TestEndPollErrors(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")
	pollID := postPoll(t, f, ts, room)

	cases := []struct {
		name    string
		payload map[string]interface{}
		want    string
	}{
		{"room not found",
			map[string]interface{}{"roomCode": "000000", "pollId": pollID.String(), "teacherId": teacherID.String()},
			"room not found"},
		{"not the owner",
			map[string]interface{}{"roomCode": "482913", "pollId": pollID.String(), "teacherId": uuid.New().String()},
			"you are not the teacher of this room"},
		{"poll not found",
			map[string]interface{}{"roomCode": "482913", "pollId": uuid.New().String(), "teacherId": teacherID.String()},
			"poll not found"},
		{"no responses",
			map[string]interface{}{"roomCode": "482913", "pollId": pollID.String(), "teacherId": teacherID.String()},
			"no responses found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.co.EndPoll(context.Background(), ts, raw(t, tc.payload))
			assertError(t, ts, EventPollEnded, tc.want)
		})
	}
}

func TestEndPollInactivePoll(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")
	pollID := postPoll(t, f, ts, room)
	f.polls.polls[pollID].IsActive = false

	f.co.EndPoll(context.Background(), ts, raw(t, map[string]interface{}{
		"roomCode": "482913", "pollId": pollID.String(), "teacherId": teacherID.String(),
	}))
	assertError(t, ts, EventPollEnded, "poll is not active")
}

func TestEndPollRequiresTeacherRole(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")
	pollID := postPoll(t, f, ts, room)

	ss, _ := studentSession(f, "jae")
	f.co.EndPoll(context.Background(), ss, raw(t, map[string]interface{}{
		"roomCode": "482913", "pollId": pollID.String(), "teacherId": teacherID.String(),
	}))
	assertError(t, ss, EventPollEnded, "Access denied. Teacher role required")
}

func TestLeaveRoom(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")

	ss, studentID := studentSession(f, "jae")
	f.co.JoinRoom(context.Background(), ss, raw(t, map[string]interface{}{
		"roomCode": "482913", "userId": studentID.String(),
	}))

	f.co.LeaveRoom(context.Background(), ss, raw(t, map[string]interface{}{
		"roomCode": "482913", "userId": studentID.String(),
	}))

	if len(f.rooms.participants[room.ID]) != 0 {
		t.Fatal("participant record not removed")
	}
	if f.hub.GroupSize("482913") != 2-1 {
		t.Fatalf("GroupSize = %d, want 1", f.hub.GroupSize("482913"))
	}
	if ts.received(EventParticipantLeft) != 1 {
		t.Fatal("teacher not notified of departure")
	}
	if ss.received(EventParticipantLeft) != 0 {
		t.Fatal("leaver was notified of its own departure")
	}
}

func TestLeaveRoomUnknownRoomIsSilent(t *testing.T) {
	f := newFixture()
	ss, studentID := studentSession(f, "jae")

	f.co.LeaveRoom(context.Background(), ss, raw(t, map[string]interface{}{
		"roomCode": "000000", "userId": studentID.String(),
	}))
	if len(ss.events) != 0 {
		t.Fatalf("leave-room emitted %d events for unknown room", len(ss.events))
	}
}

func TestFullClassroomScenario(t *testing.T) {
	f := newFixture()
	ts, teacherID := teacherSession(f)
	room := f.createRoom(t, ts, teacherID, "482913")

	students := make([]*fakeSession, 0, 3)
	ids := make([]uuid.UUID, 0, 3)
	for i := 0; i < 3; i++ {
		ss, id := studentSession(f, fmt.Sprintf("student-%d", i))
		f.co.JoinRoom(context.Background(), ss, raw(t, map[string]interface{}{
			"roomCode": "482913", "userId": id.String(),
		}))
		assertSuccess(t, ss, EventRoomJoined)
		students = append(students, ss)
		ids = append(ids, id)
	}
	if f.hub.GroupSize("482913") != 4 {
		t.Fatalf("GroupSize = %d, want 4", f.hub.GroupSize("482913"))
	}

	pollID := postPoll(t, f, ts, room)
	for _, ss := range students {
		if ss.received(EventQuestionPosted) != 1 {
			t.Fatal("student missed the question broadcast")
		}
	}

	options := []string{"4", "4", "3"}
	for i, ss := range students {
		f.co.SubmitResponse(context.Background(), ss, raw(t, map[string]interface{}{
			"roomCode": "482913", "pollId": pollID.String(), "userId": ids[i].String(), "option": options[i],
		}))
		assertSuccess(t, ss, EventPollResponse)
	}

	f.co.EndPoll(context.Background(), ts, raw(t, map[string]interface{}{
		"roomCode": "482913", "pollId": pollID.String(), "teacherId": teacherID.String(),
	}))
	reply := assertSuccess(t, ts, EventPollEnded)
	if len(reply["correctResponses"].([]models.PollResponse)) != 2 {
		t.Fatal("wrong correct count")
	}
	// Students do not receive the tally.
	for _, ss := range students {
		if ss.received(EventPollEnded) != 0 {
			t.Fatal("student received poll-ended")
		}
	}
}
