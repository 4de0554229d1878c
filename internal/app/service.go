package app

import (
	"context"

	"github.com/gitucha/BrainFuel/internal/domain"
)

// RoomRegistry is the authoritative room-code → session map. Implementations
// must create at most one session per code under concurrent first joins, and
// DeleteIfEmpty must tombstone (CloseIfEmpty) and remove in one step so a
// session absent from the map never accepts another join.
type RoomRegistry interface {
	GetOrCreate(code string) *RoomSession
	Get(code string) (*RoomSession, bool)
	DeleteIfEmpty(code string)
}

// QuestionSource supplies a deck filtered by category and difficulty. The
// returned slice holds at most count questions, fewer when the pool is small.
// Views carry no correctness data; grading happens behind AnswerGrader.
type QuestionSource interface {
	Questions(ctx context.Context, category, difficulty string, count int) ([]domain.QuestionView, error)
}

// AnswerGrader checks a submitted option against a question. Correctness data
// never leaves this boundary.
type AnswerGrader interface {
	Grade(ctx context.Context, questionID, optionID int64) (bool, error)
}

// RewardSettler credits XP and thalers to a user record, idempotently per
// (matchID, userID), including level-up detection. It must apply even when
// the participant has already disconnected.
type RewardSettler interface {
	Settle(ctx context.Context, matchID string, userID int64, xp, thalers int) error
}

// Broadcaster fans an event out to every connection in a room. Delivery must
// be non-blocking with respect to slow or dead receivers.
type Broadcaster interface {
	Broadcast(roomCode string, event any)
}

// Deps bundles the collaborators every room session needs.
type Deps struct {
	Questions QuestionSource
	Grader    AnswerGrader
	Rewards   RewardSettler
	Broadcast Broadcaster
	// Category restricts the question pool; empty means any category.
	Category string
}

// RoomService contains the multiplayer room use cases. It is a thin facade:
// each operation resolves the session and delegates, so all mutations of a
// room funnel through that session's single lock.
type RoomService struct {
	rooms RoomRegistry
}

func NewRoomService(rooms RoomRegistry) *RoomService {
	return &RoomService{rooms: rooms}
}

// Join registers a participant, lazily creating the session for unseen codes.
// A resolved session can lose a race with the last leave and get reaped
// before the roster mutation lands; such a session refuses the join and the
// loop resolves a fresh one.
func (s *RoomService) Join(code string, userID int64, username string, role domain.Role, difficulty string, count int) {
	for {
		session := s.rooms.GetOrCreate(code)
		if session.Join(userID, username, role, difficulty, count) {
			return
		}
	}
}

// Leave removes a participant and drops the session the moment it empties.
// It reports whether the participant was actually present, so repeated
// disconnect signals for one connection collapse to a single departure.
func (s *RoomService) Leave(code string, userID int64) bool {
	session, ok := s.rooms.Get(code)
	if !ok {
		return false
	}
	removed, empty := session.Leave(userID)
	if empty {
		s.rooms.DeleteIfEmpty(code)
	}
	return removed
}

// Start begins a match. Only the host's request is honored.
func (s *RoomService) Start(ctx context.Context, code string, userID int64, difficulty string, count int) error {
	session, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return session.Start(ctx, userID, difficulty, count)
}

// Answer submits an option for the current question of an active match.
func (s *RoomService) Answer(ctx context.Context, code string, userID int64, optionID int64) error {
	session, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return session.SubmitAnswer(ctx, userID, optionID)
}
