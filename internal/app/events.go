package app

import "github.com/gitucha/BrainFuel/internal/domain"

// Server-originated event types.
const (
	EventStateUpdate = "state_update"
	EventQuestion    = "question"
	EventResults     = "results"
)

// StateEvent carries the full room snapshot after every roster or state change.
type StateEvent struct {
	Type string           `json:"type"`
	Data domain.RoomState `json:"data"`
}

// QuestionEvent presents the current question, correctness stripped.
type QuestionEvent struct {
	Type     string              `json:"type"`
	Question domain.QuestionView `json:"question"`
	Index    int                 `json:"index"`
	Total    int                 `json:"total"`
}

// ResultsEvent closes a match with the final ranking.
type ResultsEvent struct {
	Type    string         `json:"type"`
	Payload ResultsPayload `json:"payload"`
}

type ResultsPayload struct {
	Summary domain.MatchSummary   `json:"summary"`
	Ranking []domain.RankingEntry `json:"ranking"`
}
