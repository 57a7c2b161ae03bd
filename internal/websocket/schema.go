package websocket

import "github.com/stemsi/placement-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError      Event = "error"
	EventSubscribed Event = "subscribed"
	EventResult     Event = "result"
	EventPong       Event = "pong"
)

// SubscribedResponse confirms the monitor is listening.
type SubscribedResponse struct {
	Event   Event  `json:"event"`
	Channel string `json:"channel"`
}

// ResultResponse carries one completed test.
type ResultResponse struct {
	Event  Event             `json:"event"`
	Result model.ResultEvent `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
