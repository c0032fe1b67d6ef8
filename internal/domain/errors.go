package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown or already swept.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMemberNotFound is returned when a user tries to act before joining.
	ErrMemberNotFound = errors.New("member not found in session")
	// ErrMemberExists is returned by the strict join path on a duplicate user id.
	ErrMemberExists = errors.New("member already exists in session")
	// ErrWrongPassword is returned when a join supplies the wrong session password.
	ErrWrongPassword = errors.New("invalid session password")
	// ErrNotCreator is returned when a non-creator attempts a privileged action.
	ErrNotCreator = errors.New("only the session creator may do this")
	// ErrNoActiveGame is returned when an answer or advance arrives outside a game.
	ErrNoActiveGame = errors.New("no active game in session")
	// ErrSourceUnavailable indicates the question source failed.
	ErrSourceUnavailable = errors.New("question source unavailable")
	// ErrNoQuestions indicates the question source returned an empty set.
	ErrNoQuestions = errors.New("question source returned no questions")
)
