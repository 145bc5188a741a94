package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mdc-engine/ramka/internal/platform/id"
)

// Role identifies who produced a message.
type Role string

const (
	// RoleTherapist marks messages written by the practicing user.
	RoleTherapist Role = "therapist"
	// RoleClient marks messages spoken by the simulated client.
	RoleClient Role = "client"
	// RoleSystem marks instructional or scripted messages.
	RoleSystem Role = "system"
)

// MaxContentLength bounds message content in runes.
const MaxContentLength = 5000

var (
	// ErrInvalidRole indicates a role outside therapist, client, system.
	ErrInvalidRole = errors.New("role must be therapist, client or system")
	// ErrEmptyContent indicates blank message content.
	ErrEmptyContent = errors.New("content is required")
	// ErrContentTooLong indicates content above MaxContentLength.
	ErrContentTooLong = errors.New("content is too long")
	// ErrEmptySessionID indicates a missing session ID.
	ErrEmptySessionID = errors.New("session id is required")
)

// Message is one utterance within a session. Seq is assigned on persistence
// and breaks creation-time ties in insertion order.
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Seq       int64
	CreatedAt time.Time
}

// ParseRole validates a wire role value.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleTherapist, RoleClient, RoleSystem:
		return Role(value), nil
	default:
		return "", ErrInvalidRole
	}
}

// NewMessage creates a validated message with a generated ID and timestamp.
func NewMessage(sessionID string, role Role, content string, now func() time.Time, idGenerator func() (string, error)) (Message, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Message{}, ErrEmptySessionID
	}
	if _, err := ParseRole(string(role)); err != nil {
		return Message{}, err
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return Message{}, ErrContentTooLong
	}

	messageID, err := idGenerator()
	if err != nil {
		return Message{}, fmt.Errorf("generate message id: %w", err)
	}
	return Message{
		ID:        messageID,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: now().UTC(),
	}, nil
}
