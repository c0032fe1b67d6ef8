package domain

// Event types published on the per-session topics. Clients switch on Type and
// decode Data accordingly.
const (
	EventUserJoin           = "USER_JOIN"
	EventUserList           = "USER_LIST"
	EventUserLeave          = "USER_LEAVE"
	EventUserUpdate         = "USER_UPDATE"
	EventUserRemoved        = "USER_REMOVED"
	EventRemovedFromSession = "REMOVED_FROM_SESSION"
	EventGameStart          = "GAME_START"
	EventNewQuestion        = "NEW_QUESTION"
	EventAnswerResult       = "ANSWER_RESULT"
	EventAllAnswered        = "ALL_ANSWERED"
	EventTimerUpdate        = "TIMER_UPDATE"
	EventGameOver           = "GAME_OVER"
	EventEndGame            = "END_GAME"
	EventSessionEnded       = "SESSION_ENDED"
)

// Event is the envelope fanned out by the notification publisher.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// UsersTopic is the routing key for membership events of a session.
func UsersTopic(sessionID string) string { return "users/" + sessionID }

// GameTopic is the routing key for game-cycle events of a session.
func GameTopic(sessionID string) string { return "game/" + sessionID }

// UserTopic is the routing key for direct messages to a single user.
func UserTopic(userID string) string { return "user/" + userID }

// UserJoinData announces a new member to a session.
type UserJoinData struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Avatar    string `json:"avatar"`
	Score     int    `json:"score"`
	Role      Role   `json:"role"`
}

// UserLeaveData announces a departed member.
type UserLeaveData struct {
	UserID string `json:"userId"`
}

// UserUpdateData announces a partial member update.
type UserUpdateData struct {
	UserID  string       `json:"userId"`
	Updates MemberUpdate `json:"updates"`
}

// UserRemovedData announces a creator-initiated kick.
type UserRemovedData struct {
	UserID string `json:"userId"`
}

// SessionRef points at a session in direct messages (REMOVED_FROM_SESSION, SESSION_ENDED).
type SessionRef struct {
	SessionID string `json:"sessionId"`
}

// GameStartData tells clients where to navigate when a game begins.
type GameStartData struct {
	Redirect string `json:"redirect"`
}

// AnswerResultData reports the outcome of one submission to the whole session.
type AnswerResultData struct {
	UserID    string `json:"userId"`
	IsCorrect bool   `json:"isCorrect"`
	Score     int    `json:"score"`
	Avatar    string `json:"avatar"`
}

// TimerUpdateData carries the remaining seconds for the current question.
type TimerUpdateData struct {
	TimeLeft int `json:"timeLeft"`
}
