package app

import (
	"sync"
	"time"

	"trivia-session-service/internal/domain"
)

// Session is a single game room: membership, scores, password gate and the
// cursor of the running game. Every read and mutation goes through the
// session's own mutex, so concurrent joins, answers and timer ticks are
// serialized per session without blocking other sessions.
type Session struct {
	id        string
	password  string
	createdAt time.Time
	now       func() time.Time

	mu        sync.Mutex
	members   map[string]*domain.Member
	questions []domain.Question
	current   int
	answered  map[string]struct{}
}

func newSession(id, password string) *Session {
	return newSessionWithClock(id, password, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(id, password string, now func() time.Time) *Session {
	return &Session{
		id:        id,
		password:  password,
		createdAt: now(),
		now:       now,
		members:   make(map[string]*domain.Member),
		answered:  make(map[string]struct{}),
	}
}

// ID returns the immutable session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the immutable creation timestamp used for expiry.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) expired(ttl time.Duration) bool {
	return s.now().Sub(s.createdAt) > ttl
}

// join is the strict, password-gated join path. Roles are assigned here, not
// taken from the caller: the first member of an empty session becomes the
// creator, everyone after joins as a player.
func (s *Session) join(userID, password, avatar string) (domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if password != s.password {
		return domain.Member{}, domain.ErrWrongPassword
	}
	if _, ok := s.members[userID]; ok {
		return domain.Member{}, domain.ErrMemberExists
	}
	member := &domain.Member{Avatar: avatar, Role: s.nextRoleLocked(), Score: 0}
	s.members[userID] = member
	return *member, nil
}

// addIfAbsent is the idempotent real-time join path: duplicate delivery of a
// join is success, not an error. The second return reports whether the member
// was actually inserted so callers can skip re-broadcasting.
func (s *Session) addIfAbsent(userID, avatar string) (domain.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.members[userID]; ok {
		return *existing, false
	}
	member := &domain.Member{Avatar: avatar, Role: s.nextRoleLocked(), Score: 0}
	s.members[userID] = member
	return *member, true
}

func (s *Session) nextRoleLocked() domain.Role {
	if len(s.members) == 0 {
		return domain.RoleCreator
	}
	return domain.RolePlayer
}

func (s *Session) removeMember(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[userID]; !ok {
		return domain.ErrMemberNotFound
	}
	delete(s.members, userID)
	delete(s.answered, userID)
	return nil
}

func (s *Session) updateMember(userID string, updates domain.MemberUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[userID]
	if !ok {
		return domain.ErrMemberNotFound
	}
	if updates.Avatar != nil {
		member.Avatar = *updates.Avatar
	}
	if updates.Score != nil {
		member.Score = *updates.Score
	}
	return nil
}

func (s *Session) score(userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[userID]
	if !ok {
		return 0, domain.ErrMemberNotFound
	}
	return member.Score, nil
}

func (s *Session) setScore(userID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[userID]
	if !ok {
		return domain.ErrMemberNotFound
	}
	member.Score = score
	return nil
}

func (s *Session) isCreator(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[userID]
	return ok && member.Role == domain.RoleCreator
}

// memberSnapshot returns a copy of the membership map. Callers never get a
// live reference into session state.
func (s *Session) memberSnapshot() map[string]domain.Member {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]domain.Member, len(s.members))
	for id, member := range s.members {
		snapshot[id] = *member
	}
	return snapshot
}

func (s *Session) scoreSnapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	scores := make(map[string]int, len(s.members))
	for id, member := range s.members {
		scores[id] = member.Score
	}
	return scores
}

// beginGame loads a fresh question set and resets the round state.
func (s *Session) beginGame(questions []domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.questions = questions
	s.current = 0
	s.answered = make(map[string]struct{})
}

func (s *Session) currentQuestion() (domain.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current >= len(s.questions) {
		return domain.Question{}, false
	}
	return s.questions[s.current], true
}

// answerOutcome is the result of one submission, captured under the lock so
// the broadcast sees a consistent score/avatar pair.
type answerOutcome struct {
	Correct     bool
	Score       int
	Avatar      string
	AllAnswered bool
}

// applyAnswer evaluates a submission against the active question. Only the
// first submission of a member in a round can score; repeats are evaluated
// and recorded but never rescored.
func (s *Session) applyAnswer(userID, answer string) (answerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current >= len(s.questions) {
		return answerOutcome{}, domain.ErrNoActiveGame
	}
	member, ok := s.members[userID]
	if !ok {
		return answerOutcome{}, domain.ErrMemberNotFound
	}

	correct := s.questions[s.current].CorrectAnswer == answer
	if _, already := s.answered[userID]; correct && !already {
		member.Score++
	}
	s.answered[userID] = struct{}{}

	return answerOutcome{
		Correct:     correct,
		Score:       member.Score,
		Avatar:      member.Avatar,
		AllAnswered: len(s.answered) == len(s.members),
	}, nil
}

func (s *Session) allAnswered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answered) == len(s.members)
}

// advance moves the cursor to the next question and clears the answered set.
// It reports the new current question, or over=true when the cursor reached
// the end of the set.
func (s *Session) advance() (next domain.Question, over bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current >= len(s.questions) {
		return domain.Question{}, false, domain.ErrNoActiveGame
	}
	s.current++
	s.answered = make(map[string]struct{})
	if s.current >= len(s.questions) {
		return domain.Question{}, true, nil
	}
	return s.questions[s.current], false, nil
}

func (s *Session) gameOver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions) > 0 && s.current >= len(s.questions)
}

func (s *Session) gameActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current < len(s.questions)
}

// finishGame drops the question set, resets every score to zero and returns
// the per-member summaries for the END_GAME broadcast.
func (s *Session) finishGame() map[string]domain.PlayerSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.questions = nil
	s.current = 0
	s.answered = make(map[string]struct{})

	summaries := make(map[string]domain.PlayerSummary, len(s.members))
	for id, member := range s.members {
		member.Score = 0
		summaries[id] = domain.PlayerSummary{Avatar: member.Avatar, Score: 0}
	}
	return summaries
}

// evictAllExcept removes every member but the given one and returns the ids
// of the evicted members, in no particular order.
func (s *Session) evictAllExcept(keepID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := make([]string, 0, len(s.members))
	for id := range s.members {
		if id == keepID {
			continue
		}
		delete(s.members, id)
		delete(s.answered, id)
		evicted = append(evicted, id)
	}
	return evicted
}
