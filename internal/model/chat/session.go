package chat

import "time"

// AgentSession binds a user to the provider agent created for them.
type AgentSession struct {
	UserID    string    `json:"userId"`
	AgentID   string    `json:"agentId"`
	CreatedAt time.Time `json:"created"`
}
