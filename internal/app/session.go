package app

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gitucha/BrainFuel/internal/domain"
)

// Match tuning. Rewards follow the account service's rule of thumb:
// ten XP and two thalers per correct answer.
const (
	scorePerCorrect   = 10
	xpPerCorrect      = 10
	thalersPerCorrect = 2

	minQuestions = 1
	maxQuestions = 10

	defaultDifficulty    = "easy"
	defaultQuestionCount = 5
)

type roomStatus int

const (
	statusLobby roomStatus = iota
	statusInProgress
)

// RoomSession is the per-room state machine: roster, host, deck, progression
// and scores. Every mutating operation runs under one mutex, so concurrent
// client actions resolve to a single well-defined order. Broadcasts happen
// inside the critical section but the Broadcaster must never block.
type RoomSession struct {
	code string
	deps Deps

	mu           sync.Mutex
	closed       bool
	status       roomStatus
	participants map[int64]*domain.Participant
	order        []int64
	hostID       int64
	deck         []domain.QuestionView
	index        int
	difficulty   string
	count        int
	matchID      string
}

// NewRoomSession builds an empty Lobby-status session for a room code.
func NewRoomSession(code string, deps Deps) *RoomSession {
	return &RoomSession{
		code:         code,
		deps:         deps,
		status:       statusLobby,
		participants: make(map[int64]*domain.Participant),
	}
}

func (s *RoomSession) Code() string { return s.code }

// Empty reports whether the roster has no participants.
func (s *RoomSession) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants) == 0
}

// CloseIfEmpty tombstones the session when the roster is empty and reports
// whether it did. A closed session refuses joins forever, so the registry can
// drop it from the map without a join slipping in between the emptiness check
// and the delete.
func (s *RoomSession) CloseIfEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.participants) > 0 {
		return false
	}
	s.closed = true
	return true
}

// Join upserts a participant into the roster. The first join may seed the
// room's default difficulty and question count; later joins keep them.
// A returning user keeps their role and counters, only the name refreshes.
// Join reports false when the session has already been reaped from its
// registry; the caller must resolve a fresh session and retry.
func (s *RoomSession) Join(userID int64, username string, role domain.Role, difficulty string, count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	if s.difficulty == "" {
		if difficulty == "" {
			difficulty = defaultDifficulty
		}
		s.difficulty = strings.ToLower(difficulty)
	}
	if s.count == 0 {
		if count <= 0 {
			count = defaultQuestionCount
		}
		s.count = clampCount(count)
	}

	if p, ok := s.participants[userID]; ok {
		p.Username = username
	} else {
		s.participants[userID] = &domain.Participant{
			ID:        userID,
			Username:  username,
			Spectator: role == domain.RoleSpectator,
		}
		s.order = append(s.order, userID)
	}

	if s.hostID == 0 {
		s.hostID = s.pickHostLocked(userID)
	}

	s.broadcastStateLocked()
	return true
}

// Leave removes a participant, reassigning the host when needed. It returns
// whether the participant was present (repeat signals are no-ops) and whether
// the roster is now empty; an empty room emits no further broadcasts and must
// be dropped from the registry by the caller.
func (s *RoomSession) Leave(userID int64) (removed, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[userID]; !ok {
		return false, len(s.participants) == 0
	}
	delete(s.participants, userID)
	for i, id := range s.order {
		if id == userID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if len(s.participants) == 0 {
		s.hostID = 0
		return true, true
	}

	if s.hostID == userID {
		s.hostID = s.pickHostLocked(s.order[0])
	}

	s.broadcastStateLocked()
	return true, false
}

// Start launches a match: host only, deck fetched fresh, all counters reset.
// A supplier failure or an empty pool aborts the transition and the session
// stays in Lobby; only the requester learns about it.
func (s *RoomSession) Start(ctx context.Context, userID int64, difficulty string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hostID != userID {
		return domain.ErrNotHost
	}

	if difficulty == "" {
		difficulty = s.difficulty
	}
	difficulty = strings.ToLower(difficulty)
	if count <= 0 {
		count = s.count
	}
	count = clampCount(count)

	deck, err := s.deps.Questions.Questions(ctx, s.deps.Category, difficulty, count)
	if err != nil {
		return err
	}
	if len(deck) == 0 {
		return domain.ErrNoQuestions
	}

	for _, p := range s.participants {
		p.Score = 0
		p.Correct = 0
		p.Total = 0
	}

	s.difficulty = difficulty
	s.count = count
	s.deck = deck
	s.index = 0
	s.status = statusInProgress
	s.matchID = uuid.NewString()

	s.broadcastStateLocked()
	s.broadcastQuestionLocked()
	return nil
}

// SubmitAnswer grades an option against the current question and advances the
// match by one question. The room moves on with the first answer received;
// slower players simply answer whatever question is current by then. A grader
// failure counts as an incorrect answer, never as an engine error.
func (s *RoomSession) SubmitAnswer(ctx context.Context, userID int64, optionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != statusInProgress || s.index >= len(s.deck) {
		return domain.ErrMatchNotRunning
	}
	p, ok := s.participants[userID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if p.Spectator {
		return domain.ErrSpectator
	}

	question := s.deck[s.index]
	correct, err := s.deps.Grader.Grade(ctx, question.ID, optionID)
	if err != nil {
		log.Printf("room %s: grade question %d: %v", s.code, question.ID, err)
		correct = false
	}

	p.Total++
	if correct {
		p.Correct++
		p.Score += scorePerCorrect
	}

	s.index++
	if s.index >= len(s.deck) {
		s.status = statusLobby
		s.finishLocked(ctx)
	} else {
		s.broadcastQuestionLocked()
	}
	return nil
}

// finishLocked ranks the players, settles rewards and broadcasts the results.
// The roster survives so the host can start a rematch.
func (s *RoomSession) finishLocked(ctx context.Context) {
	players := make([]*domain.Participant, 0, len(s.order))
	for _, id := range s.order {
		if p := s.participants[id]; p != nil && !p.Spectator {
			players = append(players, p)
		}
	}

	// Stable sort keeps join order for full ties.
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].Correct > players[j].Correct
	})

	ranking := make([]domain.RankingEntry, 0, len(players))
	for _, p := range players {
		xp := p.Correct * xpPerCorrect
		thalers := p.Correct * thalersPerCorrect
		if err := s.deps.Rewards.Settle(ctx, s.matchID, p.ID, xp, thalers); err != nil {
			// Settlement is idempotent downstream; a failure here must not
			// hold up the results broadcast.
			log.Printf("room %s: settle rewards for user %d: %v", s.code, p.ID, err)
		}
		ranking = append(ranking, domain.RankingEntry{
			UserID:        p.ID,
			Username:      p.Username,
			Correct:       p.Correct,
			Total:         p.Total,
			Score:         p.Score,
			XPEarned:      xp,
			ThalersEarned: thalers,
		})
	}

	s.deps.Broadcast.Broadcast(s.code, ResultsEvent{
		Type: EventResults,
		Payload: ResultsPayload{
			Summary: domain.MatchSummary{TotalQuestions: len(s.deck)},
			Ranking: ranking,
		},
	})
}

// pickHostLocked returns the first non-spectator in join order, falling back
// to the given participant when everyone watches.
func (s *RoomSession) pickHostLocked(fallback int64) int64 {
	for _, id := range s.order {
		if p := s.participants[id]; p != nil && !p.Spectator {
			return id
		}
	}
	return fallback
}

func (s *RoomSession) snapshotLocked() domain.RoomState {
	players := make([]domain.Participant, 0, len(s.order))
	for _, id := range s.order {
		if p := s.participants[id]; p != nil {
			players = append(players, *p)
		}
	}
	return domain.RoomState{
		Players:        players,
		Host:           s.hostID,
		Started:        s.status == statusInProgress,
		QuestionIndex:  s.index,
		TotalQuestions: len(s.deck),
	}
}

// Snapshot returns a copy of the current room state.
func (s *RoomSession) Snapshot() domain.RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *RoomSession) broadcastStateLocked() {
	s.deps.Broadcast.Broadcast(s.code, StateEvent{Type: EventStateUpdate, Data: s.snapshotLocked()})
}

func (s *RoomSession) broadcastQuestionLocked() {
	if s.index >= len(s.deck) {
		return
	}
	s.deps.Broadcast.Broadcast(s.code, QuestionEvent{
		Type:     EventQuestion,
		Question: s.deck[s.index],
		Index:    s.index,
		Total:    len(s.deck),
	})
}

func clampCount(count int) int {
	if count < minQuestions {
		return minQuestions
	}
	if count > maxQuestions {
		return maxQuestions
	}
	return count
}
