package domain

// Role describes what a member may do inside a session.
type Role string

const (
	// RoleCreator is the single privileged role; it can start/end games,
	// kick members and terminate the whole session.
	RoleCreator Role = "Creator"
	// RolePlayer is every other participant.
	RolePlayer Role = "Player"
)

// Member is a participant in a session.
type Member struct {
	Avatar string `json:"avatar"`
	Role   Role   `json:"role"`
	Score  int    `json:"score"`
}

// MemberUpdate carries a partial update for a member; nil fields stay untouched.
type MemberUpdate struct {
	Avatar *string `json:"avatar,omitempty"`
	Score  *int    `json:"score,omitempty"`
}

// Question is a single trivia question as returned by a question source.
type Question struct {
	Text             string   `json:"question"`
	CorrectAnswer    string   `json:"correctAnswer"`
	IncorrectAnswers []string `json:"incorrectAnswers"`
}

// PlayerSummary is the per-member view sent with END_GAME.
type PlayerSummary struct {
	Avatar string `json:"avatar"`
	Score  int    `json:"score"`
}
