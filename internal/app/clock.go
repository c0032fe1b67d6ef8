package app

import (
	"context"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
)

// countdownEntry is one second-resolution timer snapshot handed to the engine.
type countdownEntry struct {
	sessionID string
	timeLeft  int
}

// countdowns is the shared table of per-session question timers, ticked once
// per second by a single clock goroutine. Entries exist only while a game is
// loaded; insertion and removal are safe against concurrent game start/end.
type countdowns struct {
	mu      sync.Mutex
	entries map[string]int
}

func newCountdowns() *countdowns {
	return &countdowns{entries: make(map[string]int)}
}

// set starts or restarts the countdown for a session.
func (c *countdowns) set(sessionID string, seconds int) {
	c.mu.Lock()
	c.entries[sessionID] = seconds
	c.mu.Unlock()
}

// remove drops the countdown for a session, if any.
func (c *countdowns) remove(sessionID string) {
	c.mu.Lock()
	delete(c.entries, sessionID)
	c.mu.Unlock()
}

// active reports whether a session currently has a countdown.
func (c *countdowns) active(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[sessionID]
	return ok
}

// tick advances every countdown by one second. Running entries are
// decremented and reported as updates; entries that were already at zero are
// removed and reported as expired, for the engine to force an advance.
func (c *countdowns) tick() (updates []countdownEntry, expired []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for sessionID, timeLeft := range c.entries {
		if timeLeft > 0 {
			c.entries[sessionID] = timeLeft - 1
			updates = append(updates, countdownEntry{sessionID: sessionID, timeLeft: timeLeft - 1})
		} else {
			delete(c.entries, sessionID)
			expired = append(expired, sessionID)
		}
	}
	return updates, expired
}

// RunClock drives all active countdowns with one ticker until the context is
// canceled. Expired timers force the affected session to advance.
func (e *Engine) RunClock(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.Tick()
		case <-ctx.Done():
			return
		}
	}
}

// Tick performs a single clock step. Exposed for deterministic tests.
func (e *Engine) Tick() {
	updates, expired := e.timers.tick()
	for _, update := range updates {
		e.publisher.Publish(domain.GameTopic(update.sessionID), domain.Event{
			Type: domain.EventTimerUpdate,
			Data: domain.TimerUpdateData{TimeLeft: update.timeLeft},
		})
	}
	for _, sessionID := range expired {
		e.forceAdvance(sessionID)
	}
}

// forceAdvance is the timeout transition: a still-running game moves to the
// next question without waiting for stragglers, a finished one is wound down.
func (e *Engine) forceAdvance(sessionID string) {
	session, err := e.registry.Get(sessionID)
	if err != nil {
		return // session terminated or swept while its timer ran out
	}
	if session.gameOver() {
		_ = e.EndGame(sessionID)
		return
	}
	_ = e.Advance(sessionID)
}
