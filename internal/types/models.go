// internal/types/models.go
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/ragchat/pkg/rag"
)

// Role is the access tier the backend uses to filter retrievable documents.
type Role string

const (
	RolePublic     Role = "public"
	RoleInternal   Role = "internal"
	RoleRestricted Role = "restricted"
)

// DefaultRole is applied when nothing valid is stored.
const DefaultRole = RolePublic

// Roles lists every accepted role in display order.
var Roles = []Role{RolePublic, RoleInternal, RoleRestricted}

func (r Role) Valid() bool {
	switch r {
	case RolePublic, RoleInternal, RoleRestricted:
		return true
	}
	return false
}

// ParseRole accepts a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q (want public, internal or restricted)", s)
	}
	return r, nil
}

// Author identifies who produced a conversation turn.
type Author string

const (
	AuthorUser  Author = "user"
	AuthorAgent Author = "agent"
)

// Message is one turn of the conversation log. Data is set only on agent
// turns that carry a structured backend answer.
type Message struct {
	ID        MessageID        `json:"id"`
	Role      Author           `json:"role"`
	Content   string           `json:"content"`
	Data      *rag.AskResponse `json:"data,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewUserMessage builds a user turn stamped with now.
func NewUserMessage(content string, now time.Time) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      AuthorUser,
		Content:   content,
		Timestamp: now,
	}
}

// NewAgentMessage builds an agent turn from a validated answer.
func NewAgentMessage(resp *rag.AskResponse, now time.Time) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      AuthorAgent,
		Content:   resp.Answer,
		Data:      resp,
		Timestamp: now,
	}
}

// ConnectivityState is the last known reachability of the backend.
type ConnectivityState string

const (
	ConnectivityUnknown      ConnectivityState = "unknown"
	ConnectivityConnected    ConnectivityState = "connected"
	ConnectivityDisconnected ConnectivityState = "disconnected"
)
