package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/auth"
	"trivia-session-service/internal/domain"
	"github.com/gorilla/websocket"
)

const defaultQuestionCount = 10

// Subscriber hands out per-topic event streams from the in-process bus.
type Subscriber interface {
	Subscribe(topic string) (<-chan domain.Event, func())
}

// WSHandler upgrades connections, authenticates them with a session token and
// bridges between the client and the game engine: inbound commands in,
// session events out.
type WSHandler struct {
	engine   *app.Engine
	bus      Subscriber
	tokens   *auth.TokenService
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine, bus Subscriber, tokens *auth.TokenService) *WSHandler {
	return &WSHandler{
		engine: engine,
		bus:    bus,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type errorData struct {
	Message string `json:"message"`
}

func errorEvent(message string) domain.Event {
	return domain.Event{Type: "ERROR", Data: errorData{Message: message}}
}

// ServeWS handles one client connection for the lifetime of the socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, err := h.tokens.Parse(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan domain.Event, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for event := range send {
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// One stream per topic: membership events, game events, direct messages.
	var forwarders sync.WaitGroup
	for _, topic := range []string{
		domain.UsersTopic(sessionID),
		domain.GameTopic(sessionID),
		domain.UserTopic(userID),
	} {
		events, cancel := h.bus.Subscribe(topic)
		defer cancel()
		forwarders.Add(1)
		go func() {
			defer forwarders.Done()
			forwardEvents(events, send, closeSignals)
		}()
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(sessionID, userID, inbound, send)
	}

	close(closeSignals)
	forwarders.Wait()
	close(send)
	<-writerDone
}

func forwardEvents(events <-chan domain.Event, send chan<- domain.Event, closeSignals <-chan struct{}) {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			select {
			case send <- event:
			case <-closeSignals:
				return
			}
		case <-closeSignals:
			return
		}
	}
}

// dispatch maps one inbound command onto an engine operation. The user and
// session identity always come from the validated token, never the payload.
func (h *WSHandler) dispatch(sessionID, userID string, inbound inboundMessage, send chan<- domain.Event) {
	switch inbound.Type {
	case "USER_JOIN":
		var data struct {
			Avatar string `json:"avatar"`
		}
		_ = json.Unmarshal(inbound.Data, &data)
		if _, err := h.engine.AddUserToSession(sessionID, userID, data.Avatar); err != nil {
			send <- errorEvent(err.Error())
		}

	case "USER_LEAVE":
		if err := h.engine.LeaveSession(sessionID, userID); err != nil {
			send <- errorEvent(err.Error())
		}

	case "USER_UPDATE":
		var data struct {
			Updates domain.MemberUpdate `json:"updates"`
		}
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			send <- errorEvent("invalid update payload")
			return
		}
		if err := h.engine.UpdateUser(sessionID, userID, data.Updates); err != nil {
			send <- errorEvent(err.Error())
		}

	case "START_GAME":
		if !h.requireCreator(sessionID, userID, send) {
			return
		}
		var data struct {
			Count int `json:"count"`
		}
		_ = json.Unmarshal(inbound.Data, &data)
		if data.Count <= 0 {
			data.Count = defaultQuestionCount
		}
		if err := h.engine.StartGame(context.Background(), sessionID, data.Count); err != nil {
			send <- errorEvent(err.Error())
		}

	case "END_GAME":
		if !h.requireCreator(sessionID, userID, send) {
			return
		}
		if err := h.engine.EndGame(sessionID); err != nil {
			send <- errorEvent(err.Error())
		}

	case "SUBMIT_ANSWER":
		var data struct {
			Answer string `json:"answer"`
		}
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			send <- errorEvent("invalid answer payload")
			return
		}
		if _, err := h.engine.SubmitAnswer(sessionID, userID, data.Answer); err != nil {
			send <- errorEvent(err.Error())
		}

	case "NEXT_QUESTION":
		if err := h.engine.Advance(sessionID); err != nil {
			send <- errorEvent(err.Error())
		}

	case "GET_CURRENT_QUESTION":
		if _, err := h.engine.CurrentQuestion(sessionID); err != nil {
			send <- errorEvent(err.Error())
		}

	case "REMOVE_USER":
		var data struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.UserID == "" {
			send <- errorEvent("invalid remove payload")
			return
		}
		if err := h.engine.KickUser(sessionID, data.UserID, userID); err != nil {
			send <- errorEvent(err.Error())
		}

	case "CREATOR_LEAVE":
		if err := h.engine.TerminateSession(sessionID, userID); err != nil {
			send <- errorEvent(err.Error())
		}

	default:
		send <- errorEvent("unsupported message type")
	}
}

func (h *WSHandler) requireCreator(sessionID, userID string, send chan<- domain.Event) bool {
	isCreator, err := h.engine.IsCreator(sessionID, userID)
	if err != nil {
		send <- errorEvent(err.Error())
		return false
	}
	if !isCreator {
		send <- errorEvent(domain.ErrNotCreator.Error())
		return false
	}
	return true
}
