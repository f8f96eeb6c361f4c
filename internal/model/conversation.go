package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MessageRoleUser = "user"
	MessageRoleBot  = "bot"

	// DefaultMessageConfidence is assumed when the answering backend reports none.
	DefaultMessageConfidence = 100

	conversationSessionIDMaxLength = 64
	messageTextMaxLength           = 8000
)

var (
	ErrInvalidConversationCompanyID = errors.New("invalid_conversation_company_id")
	ErrInvalidConversationSessionID = errors.New("invalid_conversation_session_id")
	ErrInvalidMessageConversationID = errors.New("invalid_message_conversation_id")
	ErrInvalidMessageRole           = errors.New("invalid_message_role")
	ErrInvalidMessageText           = errors.New("invalid_message_text")
	ErrInvalidMessageConfidence     = errors.New("invalid_message_confidence")
)

// Conversation is a backend-assigned chat thread for one visitor session.
// A session identifier maps to at most one live conversation per company.
type Conversation struct {
	ID            string    `gorm:"primaryKey;size:36"`
	CompanyID     string    `gorm:"not null;size:64;index"`
	SessionID     string    `gorm:"not null;size:64;uniqueIndex:idx_conversations_company_session"`
	ConsentGiven  bool      `gorm:"not null;default:false"`
	ConsentAt     time.Time
	StartedAt     time.Time `gorm:"not null"`
	LastMessageAt time.Time `gorm:"index"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// ConversationInput holds the raw values used to construct a Conversation.
type ConversationInput struct {
	CompanyID string
	SessionID string
	StartedAt time.Time
}

// NewConversation constructs a Conversation with validated, normalized fields.
func NewConversation(input ConversationInput) (Conversation, error) {
	companyID := strings.TrimSpace(input.CompanyID)
	if companyID == "" {
		return Conversation{}, ErrInvalidConversationCompanyID
	}

	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" || len(sessionID) > conversationSessionIDMaxLength {
		return Conversation{}, ErrInvalidConversationSessionID
	}

	startedAt := input.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	return Conversation{
		ID:            uuid.NewString(),
		CompanyID:     companyID,
		SessionID:     sessionID,
		StartedAt:     startedAt,
		LastMessageAt: startedAt,
	}, nil
}

// ConversationMessage is a single stored transcript entry.
type ConversationMessage struct {
	ID             string    `gorm:"primaryKey;size:36"`
	ConversationID string    `gorm:"not null;size:36;index"`
	Role           string    `gorm:"not null;size:8"`
	Text           string    `gorm:"not null;size:8000"`
	HadAnswer      bool      `gorm:"not null;default:false"`
	Confidence     int       `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index"`
}

// ConversationMessageInput holds the raw values used to construct a ConversationMessage.
type ConversationMessageInput struct {
	ConversationID string
	Role           string
	Text           string
	HadAnswer      bool
	Confidence     int
}

// NewConversationMessage constructs a ConversationMessage with validated fields.
// Answered bot messages without a reported confidence get DefaultMessageConfidence;
// fallback replies keep confidence zero so clients can render them as uncertain.
func NewConversationMessage(input ConversationMessageInput) (ConversationMessage, error) {
	conversationID := strings.TrimSpace(input.ConversationID)
	if conversationID == "" {
		return ConversationMessage{}, ErrInvalidMessageConversationID
	}

	role := strings.TrimSpace(input.Role)
	if role != MessageRoleUser && role != MessageRoleBot {
		return ConversationMessage{}, fmt.Errorf("%w: %s", ErrInvalidMessageRole, role)
	}

	text := strings.TrimSpace(input.Text)
	if text == "" || len(text) > messageTextMaxLength {
		return ConversationMessage{}, ErrInvalidMessageText
	}

	confidence := input.Confidence
	if role == MessageRoleBot && input.HadAnswer && confidence == 0 {
		confidence = DefaultMessageConfidence
	}
	if confidence < 0 || confidence > 100 {
		return ConversationMessage{}, fmt.Errorf("%w: %d", ErrInvalidMessageConfidence, input.Confidence)
	}

	return ConversationMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		HadAnswer:      input.HadAnswer,
		Confidence:     confidence,
	}, nil
}
