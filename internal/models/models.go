package models

import "time"

type SessionState string

const (
	StateConnecting   SessionState = "connecting"
	StateOpen         SessionState = "open"
	StateDisconnected SessionState = "disconnected"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

type PhoneInfo struct {
	JID   string `json:"jid"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

type SessionResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type SessionListResponse struct {
	Sessions []string `json:"sessions"`
	Count    int      `json:"count"`
}

type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	ActiveSessions int       `json:"activeSessions"`
}

type ErrorResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Code      string            `json:"code"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewErrorResponse(message, code string, details map[string]string) *ErrorResponse {
	return &ErrorResponse{
		Status:    "error",
		Message:   message,
		Code:      code,
		Details:   details,
		Timestamp: time.Now(),
	}
}

type QRUpdatePayload struct {
	SessionID string `json:"sessionId"`
	QRCode    string `json:"qrCode"`
}

type ConnectionUpdatePayload struct {
	SessionID string     `json:"sessionId"`
	Status    string     `json:"status"`
	PhoneInfo *PhoneInfo `json:"phoneInfo"`
}

type IncomingMessagePayload struct {
	SessionID string `json:"sessionId"`
	From      string `json:"from"`
	Text      string `json:"text"`
}

type HeartbeatPayload struct {
	SessionID string `json:"sessionId"`
}

type BackendReply struct {
	Reply string `json:"reply"`
}
