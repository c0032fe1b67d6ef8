package app

import (
	"context"
	"fmt"
	"log"

	"trivia-session-service/internal/domain"
)

// QuestionSource returns up to count questions on demand. It may fail or
// return fewer items than requested; an empty result is the caller's problem.
type QuestionSource interface {
	Fetch(ctx context.Context, count int) ([]domain.Question, error)
}

// Publisher fans session events out to clients. Delivery is best effort,
// at least once, with no acknowledgment back into the engine.
type Publisher interface {
	Publish(topic string, event domain.Event)
	PublishToUser(userID string, event domain.Event)
}

const (
	defaultQuestionTime = 60 // seconds per question
	defaultRevealDelay  = 5  // seconds between ALL_ANSWERED and the next question
	gameRedirectPath    = "/trivia"
)

// Engine orchestrates the game state machine across all sessions: membership
// events, game start/advance/end, answer scoring and the question countdown.
type Engine struct {
	registry  *Registry
	source    QuestionSource
	publisher Publisher
	timers    *countdowns

	questionTime int
	revealDelay  int
}

// NewEngine wires the engine to its collaborators. questionTime and
// revealDelay are in seconds; zero values pick the defaults.
func NewEngine(registry *Registry, source QuestionSource, publisher Publisher, questionTime, revealDelay int) *Engine {
	if questionTime <= 0 {
		questionTime = defaultQuestionTime
	}
	if revealDelay <= 0 {
		revealDelay = defaultRevealDelay
	}
	return &Engine{
		registry:     registry,
		source:       source,
		publisher:    publisher,
		timers:       newCountdowns(),
		questionTime: questionTime,
		revealDelay:  revealDelay,
	}
}

// CreateSession allocates an empty session and returns its id.
func (e *Engine) CreateSession(password string) string {
	return e.registry.Create(password).ID()
}

// JoinSession is the strict join path used by the REST surface. It does not
// broadcast; the real-time join announcement happens via AddUserToSession.
func (e *Engine) JoinSession(sessionID, userID, password, avatar string) (domain.Member, error) {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return domain.Member{}, err
	}
	member, err := session.join(userID, password, avatar)
	if err != nil {
		log.Printf("join of %s to session %s rejected: %v", userID, sessionID, err)
		return domain.Member{}, err
	}
	log.Printf("user %s joined session %s as %s", userID, sessionID, member.Role)
	return member, nil
}

// AddUserToSession is the idempotent real-time join path. A duplicate join is
// success and is not re-broadcast, but the current user list is always sent
// so late subscribers converge.
func (e *Engine) AddUserToSession(sessionID, userID, avatar string) (domain.Member, error) {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return domain.Member{}, err
	}
	member, inserted := session.addIfAbsent(userID, avatar)
	if inserted {
		e.publisher.Publish(domain.UsersTopic(sessionID), domain.Event{
			Type: domain.EventUserJoin,
			Data: domain.UserJoinData{
				UserID:    userID,
				SessionID: sessionID,
				Avatar:    member.Avatar,
				Score:     member.Score,
				Role:      member.Role,
			},
		})
	} else {
		log.Printf("user %s already in session %s, skipping join broadcast", userID, sessionID)
	}
	e.publisher.Publish(domain.UsersTopic(sessionID), domain.Event{
		Type: domain.EventUserList,
		Data: session.memberSnapshot(),
	})
	return member, nil
}

// LeaveSession removes a member on their own initiative. A leave for a member
// that is already gone is swallowed: duplicate delivery is expected on the
// real-time path.
func (e *Engine) LeaveSession(sessionID, userID string) error {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return err
	}
	removed := session.removeMember(userID) == nil
	e.publisher.Publish(domain.UsersTopic(sessionID), domain.Event{
		Type: domain.EventUserLeave,
		Data: domain.UserLeaveData{UserID: userID},
	})
	if removed {
		e.publisher.Publish(domain.UsersTopic(sessionID), domain.Event{
			Type: domain.EventUserList,
			Data: session.memberSnapshot(),
		})
	}
	return nil
}

// UpdateUser applies a partial member update and announces it.
func (e *Engine) UpdateUser(sessionID, userID string, updates domain.MemberUpdate) error {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return err
	}
	if err := session.updateMember(userID, updates); err != nil {
		return err
	}
	e.publisher.Publish(domain.UsersTopic(sessionID), domain.Event{
		Type: domain.EventUserUpdate,
		Data: domain.UserUpdateData{UserID: userID, Updates: updates},
	})
	return nil
}

// KickUser removes a member on the creator's behalf, telling both the room
// and the removed member.
func (e *Engine) KickUser(sessionID, userID, requesterID string) error {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return err
	}
	if !session.isCreator(requesterID) {
		return domain.ErrNotCreator
	}
	if err := session.removeMember(userID); err != nil {
		return err
	}
	e.publisher.Publish(domain.UsersTopic(sessionID), domain.Event{
		Type: domain.EventUserRemoved,
		Data: domain.UserRemovedData{UserID: userID},
	})
	e.publisher.PublishToUser(userID, domain.Event{
		Type: domain.EventRemovedFromSession,
		Data: domain.SessionRef{SessionID: sessionID},
	})
	log.Printf("user %s removed from session %s by %s", userID, sessionID, requesterID)
	return nil
}

// IsCreator reports whether the user holds the privileged role in the session.
func (e *Engine) IsCreator(sessionID, userID string) (bool, error) {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return false, err
	}
	return session.isCreator(userID), nil
}

// Members returns a defensive snapshot of the session membership.
func (e *Engine) Members(sessionID string) (map[string]domain.Member, error) {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return session.memberSnapshot(), nil
}

// Scores returns a snapshot of every member's score.
func (e *Engine) Scores(sessionID string) (map[string]int, error) {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return session.scoreSnapshot(), nil
}

// Score returns one member's score.
func (e *Engine) Score(sessionID, userID string) (int, error) {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return 0, err
	}
	return session.score(userID)
}

// UpdateScore overwrites one member's score.
func (e *Engine) UpdateScore(sessionID, userID string, score int) error {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return err
	}
	return session.setScore(userID, score)
}

// StartGame fetches a question set and starts a new game. The fetch happens
// before the session lock is taken, so a slow source never stalls unrelated
// answer traffic; a session terminated mid-fetch simply discards the result.
// Privilege is checked by the caller via IsCreator.
func (e *Engine) StartGame(ctx context.Context, sessionID string, count int) error {
	if _, err := e.registry.Get(sessionID); err != nil {
		return err
	}

	questions, err := e.source.Fetch(ctx, count)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	if len(questions) == 0 {
		return domain.ErrNoQuestions
	}

	session, err := e.registry.Get(sessionID)
	if err != nil {
		return err // session vanished during the fetch
	}
	session.beginGame(questions)
	e.timers.set(sessionID, e.questionTime)

	topic := domain.GameTopic(sessionID)
	e.publisher.Publish(topic, domain.Event{
		Type: domain.EventGameStart,
		Data: domain.GameStartData{Redirect: gameRedirectPath},
	})
	e.publisher.Publish(topic, domain.Event{Type: domain.EventNewQuestion, Data: questions[0]})
	log.Printf("started game in session %s with %d questions", sessionID, len(questions))
	return nil
}

// SubmitAnswer evaluates one answer against the active question and reports
// whether it was correct. A correct first submission in a round scores one
// point; repeat submissions are evaluated and broadcast but never rescored.
// When the submission completes the round, the countdown is shortened so the
// clock advances after the reveal delay instead of the full question time.
func (e *Engine) SubmitAnswer(sessionID, userID, answer string) (bool, error) {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return false, err
	}
	outcome, err := session.applyAnswer(userID, answer)
	if err != nil {
		return false, err
	}

	topic := domain.GameTopic(sessionID)
	e.publisher.Publish(topic, domain.Event{
		Type: domain.EventAnswerResult,
		Data: domain.AnswerResultData{
			UserID:    userID,
			IsCorrect: outcome.Correct,
			Score:     outcome.Score,
			Avatar:    outcome.Avatar,
		},
	})
	if outcome.AllAnswered {
		e.publisher.Publish(topic, domain.Event{Type: domain.EventAllAnswered})
		e.timers.set(sessionID, e.revealDelay)
	}
	return outcome.Correct, nil
}

// AllAnswered reports whether every member has answered the current question.
func (e *Engine) AllAnswered(sessionID string) (bool, error) {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return false, err
	}
	return session.allAnswered(), nil
}

// Advance moves a running game to the next question, or to game over when the
// set is exhausted. The countdown restarts either way: a finished game keeps
// its timer so the clock winds it down after the final scores were shown.
func (e *Engine) Advance(sessionID string) error {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return err
	}
	next, over, err := session.advance()
	if err != nil {
		return err
	}
	e.timers.set(sessionID, e.questionTime)

	topic := domain.GameTopic(sessionID)
	if over {
		e.publisher.Publish(topic, domain.Event{
			Type: domain.EventGameOver,
			Data: session.scoreSnapshot(),
		})
		log.Printf("game over in session %s", sessionID)
		return nil
	}
	e.publisher.Publish(topic, domain.Event{Type: domain.EventNewQuestion, Data: next})
	return nil
}

// CurrentQuestion re-publishes the active question for clients that joined or
// reconnected mid-round.
func (e *Engine) CurrentQuestion(sessionID string) (domain.Question, error) {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return domain.Question{}, err
	}
	question, ok := session.currentQuestion()
	if !ok {
		return domain.Question{}, domain.ErrNoActiveGame
	}
	e.publisher.Publish(domain.GameTopic(sessionID), domain.Event{
		Type: domain.EventNewQuestion,
		Data: question,
	})
	return question, nil
}

// EndGame returns the session to idle: questions dropped, scores reset, timer
// gone. Safe to call from any state, and idempotent on scores.
func (e *Engine) EndGame(sessionID string) error {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return err
	}
	summaries := session.finishGame()
	e.timers.remove(sessionID)
	e.publisher.Publish(domain.GameTopic(sessionID), domain.Event{
		Type: domain.EventEndGame,
		Data: summaries,
	})
	log.Printf("game ended in session %s, all scores reset", sessionID)
	return nil
}

// TerminateSession is the creator tearing the room down: every other member
// is evicted and told directly, the room is told, and the session id becomes
// permanently invalid.
func (e *Engine) TerminateSession(sessionID, requesterID string) error {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return err
	}
	if !session.isCreator(requesterID) {
		return domain.ErrNotCreator
	}

	for _, userID := range session.evictAllExcept(requesterID) {
		e.publisher.PublishToUser(userID, domain.Event{
			Type: domain.EventSessionEnded,
			Data: domain.SessionRef{SessionID: sessionID},
		})
	}
	e.publisher.Publish(domain.UsersTopic(sessionID), domain.Event{
		Type: domain.EventSessionEnded,
		Data: domain.SessionRef{SessionID: sessionID},
	})
	e.timers.remove(sessionID)
	e.registry.Remove(sessionID)
	log.Printf("session %s ended by creator %s", sessionID, requesterID)
	return nil
}
