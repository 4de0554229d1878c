package domain

// Role determines whether a participant plays or only watches.
type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// ParseRole maps a wire role string onto a known Role, defaulting to player.
func ParseRole(raw string) Role {
	if raw == string(RoleSpectator) {
		return RoleSpectator
	}
	return RolePlayer
}

// Participant is a room member with per-match counters. The JSON keys form
// the player shape broadcast in state_update events.
type Participant struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Spectator bool   `json:"is_spectator"`
	Score     int    `json:"score"`
	Correct   int    `json:"correct"`
	Total     int    `json:"total"`
}

// Option is a possible answer. Correct never crosses the client boundary.
type Option struct {
	ID      int64  `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is the server-side shape with correctness included.
type Question struct {
	ID         int64    `json:"id"`
	Text       string   `json:"text"`
	Category   string   `json:"category,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Options    []Option `json:"options"`
}

// OptionView is the client-facing option shape.
type OptionView struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the client-facing question shape with correctness stripped.
type QuestionView struct {
	ID      int64        `json:"id"`
	Text    string       `json:"text"`
	Options []OptionView `json:"options"`
}

// View strips correctness for broadcast to clients.
func (q Question) View() QuestionView {
	options := make([]OptionView, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, OptionView{ID: opt.ID, Text: opt.Text})
	}
	return QuestionView{ID: q.ID, Text: q.Text, Options: options}
}

// CorrectOption returns the id of the correct option, or 0 when none is marked.
func (q Question) CorrectOption() int64 {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt.ID
		}
	}
	return 0
}

// RoomState is the state_update payload shared with every room member.
type RoomState struct {
	Players        []Participant `json:"players"`
	Host           int64         `json:"host"`
	Started        bool          `json:"started"`
	QuestionIndex  int           `json:"questionIndex"`
	TotalQuestions int           `json:"totalQuestions"`
}

// RankingEntry is one row of the end-of-match results broadcast.
type RankingEntry struct {
	UserID        int64  `json:"user_id"`
	Username      string `json:"username"`
	Correct       int    `json:"correct"`
	Total         int    `json:"total"`
	Score         int    `json:"score"`
	XPEarned      int    `json:"xp_earned"`
	ThalersEarned int    `json:"thalers_earned"`
}

// MatchSummary accompanies the ranking in the results event.
type MatchSummary struct {
	TotalQuestions int `json:"total_questions"`
}

// Room is the provisioning-side metadata persisted for the lobby API.
// Live game state is never stored here; it stays with the in-process session.
type Room struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	HostID        int64  `json:"host_id"`
	HostUsername  string `json:"host_username"`
	IsPublic      bool   `json:"is_public"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"question_count"`
	MaxPlayers    int    `json:"max_players"`
	Status        string `json:"status"`
}

// Room statuses for provisioning metadata.
const (
	RoomWaiting  = "waiting"
	RoomActive   = "active"
	RoomFinished = "finished"
)
