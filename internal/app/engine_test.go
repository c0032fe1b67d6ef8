package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trivia-session-service/internal/domain"
)

type publishedEvent struct {
	Topic string
	Event domain.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	direct []publishedEvent // Topic holds the user id
}

func (p *recordingPublisher) Publish(topic string, event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Event: event})
}

func (p *recordingPublisher) PublishToUser(userID string, event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.direct = append(p.direct, publishedEvent{Topic: userID, Event: event})
}

func (p *recordingPublisher) typesOn(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []string
	for _, published := range p.events {
		if published.Topic == topic {
			types = append(types, published.Event.Type)
		}
	}
	return types
}

func (p *recordingPublisher) countOn(topic, eventType string) int {
	count := 0
	for _, typ := range p.typesOn(topic) {
		if typ == eventType {
			count++
		}
	}
	return count
}

func (p *recordingPublisher) directTo(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []string
	for _, published := range p.direct {
		if published.Topic == userID {
			types = append(types, published.Event.Type)
		}
	}
	return types
}

type staticSource struct {
	questions []domain.Question
	err       error
}

func (s *staticSource) Fetch(_ context.Context, count int) ([]domain.Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	if count > len(s.questions) {
		count = len(s.questions)
	}
	return s.questions[:count], nil
}

func twoQuestions() []domain.Question {
	return []domain.Question{
		{Text: "Q1", CorrectAnswer: "A", IncorrectAnswers: []string{"B", "C", "D"}},
		{Text: "Q2", CorrectAnswer: "B", IncorrectAnswers: []string{"A", "C", "D"}},
	}
}

func newTestEngine(questions []domain.Question, questionTime, revealDelay int) (*Engine, *Registry, *recordingPublisher) {
	registry := NewRegistry(3 * time.Hour)
	publisher := &recordingPublisher{}
	engine := NewEngine(registry, &staticSource{questions: questions}, publisher, questionTime, revealDelay)
	return engine, registry, publisher
}

func joinTwo(t *testing.T, engine *Engine) string {
	t.Helper()
	sessionID := engine.CreateSession("p1")
	if _, err := engine.JoinSession(sessionID, "alice", "p1", "cat"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if _, err := engine.JoinSession(sessionID, "bob", "p1", "dog"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	return sessionID
}

func TestStartGameLoadsQuestionsAndBroadcasts(t *testing.T) {
	engine, _, publisher := newTestEngine(twoQuestions(), 60, 5)
	sessionID := joinTwo(t, engine)

	if err := engine.StartGame(context.Background(), sessionID, 2); err != nil {
		t.Fatalf("start game: %v", err)
	}

	topic := domain.GameTopic(sessionID)
	types := publisher.typesOn(topic)
	if len(types) != 2 || types[0] != domain.EventGameStart || types[1] != domain.EventNewQuestion {
		t.Fatalf("expected GAME_START then NEW_QUESTION, got %v", types)
	}
	question, err := engine.CurrentQuestion(sessionID)
	if err != nil || question.Text != "Q1" {
		t.Fatalf("expected Q1 active, got %+v, %v", question, err)
	}
	if !engine.timers.active(sessionID) {
		t.Fatalf("expected a countdown after game start")
	}
}

func TestStartGameSourceFailures(t *testing.T) {
	registry := NewRegistry(3 * time.Hour)
	publisher := &recordingPublisher{}

	failing := NewEngine(registry, &staticSource{err: errors.New("boom")}, publisher, 60, 5)
	sessionID := registry.Create("p1").ID()
	if err := failing.StartGame(context.Background(), sessionID, 2); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}

	empty := NewEngine(registry, &staticSource{}, publisher, 60, 5)
	if err := empty.StartGame(context.Background(), sessionID, 2); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected no questions, got %v", err)
	}

	if err := failing.StartGame(context.Background(), "missing", 2); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found for unknown session, got %v", err)
	}
}

func TestAnswerScoringRound(t *testing.T) {
	engine, _, publisher := newTestEngine(twoQuestions(), 60, 5)
	sessionID := joinTwo(t, engine)
	if err := engine.StartGame(context.Background(), sessionID, 2); err != nil {
		t.Fatalf("start game: %v", err)
	}

	correct, err := engine.SubmitAnswer(sessionID, "alice", "A")
	if err != nil || !correct {
		t.Fatalf("expected alice correct, got %v, %v", correct, err)
	}
	if score, _ := engine.Score(sessionID, "alice"); score != 1 {
		t.Fatalf("expected alice score 1, got %d", score)
	}

	correct, err = engine.SubmitAnswer(sessionID, "bob", "B")
	if err != nil || correct {
		t.Fatalf("expected bob incorrect, got %v, %v", correct, err)
	}
	if score, _ := engine.Score(sessionID, "bob"); score != 0 {
		t.Fatalf("expected bob score unchanged, got %d", score)
	}

	all, err := engine.AllAnswered(sessionID)
	if err != nil || !all {
		t.Fatalf("expected all answered, got %v, %v", all, err)
	}
	topic := domain.GameTopic(sessionID)
	if publisher.countOn(topic, domain.EventAnswerResult) != 2 {
		t.Fatalf("expected two ANSWER_RESULT events")
	}
	if publisher.countOn(topic, domain.EventAllAnswered) != 1 {
		t.Fatalf("expected ALL_ANSWERED once")
	}

	if err := engine.Advance(sessionID); err != nil {
		t.Fatalf("advance: %v", err)
	}
	question, err := engine.CurrentQuestion(sessionID)
	if err != nil || question.Text != "Q2" {
		t.Fatalf("expected Q2 after advance, got %+v, %v", question, err)
	}
	if all, _ := engine.AllAnswered(sessionID); all {
		t.Fatalf("answered set must be cleared by advance")
	}
}

func TestSubmitAnswerOutsideGame(t *testing.T) {
	engine, _, _ := newTestEngine(twoQuestions(), 60, 5)
	sessionID := joinTwo(t, engine)

	if _, err := engine.SubmitAnswer(sessionID, "alice", "A"); !errors.Is(err, domain.ErrNoActiveGame) {
		t.Fatalf("expected no active game, got %v", err)
	}
	if _, err := engine.SubmitAnswer("missing", "alice", "A"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestAdvancePastGameOverIsRejected(t *testing.T) {
	engine, _, publisher := newTestEngine(twoQuestions(), 60, 5)
	sessionID := joinTwo(t, engine)
	if err := engine.StartGame(context.Background(), sessionID, 1); err != nil {
		t.Fatalf("start game: %v", err)
	}

	if err := engine.Advance(sessionID); err != nil {
		t.Fatalf("advance to game over: %v", err)
	}
	topic := domain.GameTopic(sessionID)
	if publisher.countOn(topic, domain.EventGameOver) != 1 {
		t.Fatalf("expected GAME_OVER once, got %v", publisher.typesOn(topic))
	}

	if err := engine.Advance(sessionID); !errors.Is(err, domain.ErrNoActiveGame) {
		t.Fatalf("expected advance past over rejected, got %v", err)
	}
	if publisher.countOn(topic, domain.EventGameOver) != 1 {
		t.Fatalf("rejected advance must not re-broadcast GAME_OVER")
	}
}

func TestEndGameResetsScoresIdempotently(t *testing.T) {
	engine, _, publisher := newTestEngine(twoQuestions(), 60, 5)
	sessionID := joinTwo(t, engine)
	if err := engine.StartGame(context.Background(), sessionID, 2); err != nil {
		t.Fatalf("start game: %v", err)
	}
	if _, err := engine.SubmitAnswer(sessionID, "alice", "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := engine.EndGame(sessionID); err != nil {
			t.Fatalf("end game %d: %v", i, err)
		}
		scores, _ := engine.Scores(sessionID)
		for userID, score := range scores {
			if score != 0 {
				t.Fatalf("expected %s reset to 0, got %d", userID, score)
			}
		}
	}
	if engine.timers.active(sessionID) {
		t.Fatalf("end game must drop the countdown")
	}
	if publisher.countOn(domain.GameTopic(sessionID), domain.EventEndGame) != 2 {
		t.Fatalf("expected END_GAME per call")
	}
}

func TestTimeoutForcesAdvanceWithoutStragglers(t *testing.T) {
	engine, _, publisher := newTestEngine(twoQuestions(), 1, 1)
	sessionID := joinTwo(t, engine)
	if err := engine.StartGame(context.Background(), sessionID, 2); err != nil {
		t.Fatalf("start game: %v", err)
	}
	if _, err := engine.SubmitAnswer(sessionID, "alice", "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	// bob never answers

	engine.Tick() // 1 -> 0, TIMER_UPDATE
	engine.Tick() // expired -> forced advance

	topic := domain.GameTopic(sessionID)
	if publisher.countOn(topic, domain.EventTimerUpdate) == 0 {
		t.Fatalf("expected TIMER_UPDATE while counting down")
	}
	if publisher.countOn(topic, domain.EventNewQuestion) != 2 {
		t.Fatalf("expected forced advance to publish the next question, got %v", publisher.typesOn(topic))
	}
	if question, _ := engine.CurrentQuestion(sessionID); question.Text != "Q2" {
		t.Fatalf("expected Q2 after timeout, got %+v", question)
	}
}

func TestTimeoutWindsDownFinishedGame(t *testing.T) {
	engine, _, publisher := newTestEngine(twoQuestions(), 1, 1)
	sessionID := joinTwo(t, engine)
	if err := engine.StartGame(context.Background(), sessionID, 1); err != nil {
		t.Fatalf("start game: %v", err)
	}

	engine.Tick()
	engine.Tick() // timeout -> advance -> game over

	topic := domain.GameTopic(sessionID)
	if publisher.countOn(topic, domain.EventGameOver) != 1 {
		t.Fatalf("expected GAME_OVER after final timeout, got %v", publisher.typesOn(topic))
	}

	engine.Tick()
	engine.Tick() // second timeout in the over state -> end game

	if publisher.countOn(topic, domain.EventEndGame) != 1 {
		t.Fatalf("expected END_GAME after the over-state timeout, got %v", publisher.typesOn(topic))
	}
	if engine.timers.active(sessionID) {
		t.Fatalf("expected no countdown after the game wound down")
	}
}

func TestAllAnsweredShortensCountdown(t *testing.T) {
	engine, _, publisher := newTestEngine(twoQuestions(), 60, 1)
	sessionID := joinTwo(t, engine)
	if err := engine.StartGame(context.Background(), sessionID, 2); err != nil {
		t.Fatalf("start game: %v", err)
	}

	if _, err := engine.SubmitAnswer(sessionID, "alice", "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := engine.SubmitAnswer(sessionID, "bob", "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	engine.Tick() // reveal delay 1 -> 0
	engine.Tick() // expired -> advance

	if publisher.countOn(domain.GameTopic(sessionID), domain.EventNewQuestion) != 2 {
		t.Fatalf("expected the round to advance right after the reveal delay")
	}
}

func TestKickUserRequiresCreator(t *testing.T) {
	engine, _, publisher := newTestEngine(nil, 60, 5)
	sessionID := joinTwo(t, engine)

	if err := engine.KickUser(sessionID, "alice", "bob"); !errors.Is(err, domain.ErrNotCreator) {
		t.Fatalf("expected forbidden for non-creator, got %v", err)
	}

	if err := engine.KickUser(sessionID, "bob", "alice"); err != nil {
		t.Fatalf("creator kick failed: %v", err)
	}
	members, _ := engine.Members(sessionID)
	if _, ok := members["bob"]; ok {
		t.Fatalf("expected bob removed")
	}
	if publisher.countOn(domain.UsersTopic(sessionID), domain.EventUserRemoved) != 1 {
		t.Fatalf("expected USER_REMOVED broadcast")
	}
	if types := publisher.directTo("bob"); len(types) != 1 || types[0] != domain.EventRemovedFromSession {
		t.Fatalf("expected direct REMOVED_FROM_SESSION to bob, got %v", types)
	}
}

func TestTerminateSessionRequiresCreator(t *testing.T) {
	engine, registry, _ := newTestEngine(nil, 60, 5)
	sessionID := joinTwo(t, engine)

	if err := engine.TerminateSession(sessionID, "bob"); !errors.Is(err, domain.ErrNotCreator) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := registry.Get(sessionID); err != nil {
		t.Fatalf("session must survive a forbidden termination: %v", err)
	}
	members, _ := engine.Members(sessionID)
	if len(members) != 2 {
		t.Fatalf("membership must be intact, got %v", members)
	}
}

func TestTerminateSessionByCreator(t *testing.T) {
	engine, registry, publisher := newTestEngine(twoQuestions(), 60, 5)
	sessionID := joinTwo(t, engine)
	if err := engine.StartGame(context.Background(), sessionID, 2); err != nil {
		t.Fatalf("start game: %v", err)
	}

	if err := engine.TerminateSession(sessionID, "alice"); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	if types := publisher.directTo("bob"); len(types) != 1 || types[0] != domain.EventSessionEnded {
		t.Fatalf("expected direct SESSION_ENDED to bob, got %v", types)
	}
	if publisher.countOn(domain.UsersTopic(sessionID), domain.EventSessionEnded) != 1 {
		t.Fatalf("expected SESSION_ENDED broadcast")
	}
	if _, err := registry.Get(sessionID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected the session id to become invalid, got %v", err)
	}
	if engine.timers.active(sessionID) {
		t.Fatalf("expected the countdown gone after termination")
	}
}

func TestIdempotentRealtimeJoinAndLeave(t *testing.T) {
	engine, _, publisher := newTestEngine(nil, 60, 5)
	sessionID := engine.CreateSession("p1")

	if _, err := engine.AddUserToSession(sessionID, "alice", "cat"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := engine.AddUserToSession(sessionID, "alice", "cat"); err != nil {
		t.Fatalf("duplicate add must succeed: %v", err)
	}
	topic := domain.UsersTopic(sessionID)
	if publisher.countOn(topic, domain.EventUserJoin) != 1 {
		t.Fatalf("duplicate join must not be re-broadcast")
	}
	if publisher.countOn(topic, domain.EventUserList) != 2 {
		t.Fatalf("user list is sent on every join delivery")
	}

	if err := engine.LeaveSession(sessionID, "alice"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := engine.LeaveSession(sessionID, "alice"); err != nil {
		t.Fatalf("duplicate leave must be swallowed: %v", err)
	}
	if publisher.countOn(topic, domain.EventUserLeave) != 2 {
		t.Fatalf("USER_LEAVE is broadcast per delivery")
	}
}
