package chat

import "time"

// Session groups an ordered transcript under an opaque identifier.
type Session struct {
	ID        string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}
