package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidFeedbackCompanyID = errors.New("invalid_feedback_company_id")
	ErrInvalidFeedbackSessionID = errors.New("invalid_feedback_session_id")
)

// FeedbackEvent records a visitor's helpful / not-helpful vote on a bot answer.
// Votes are fire-and-forget from the widget, so events carry no message linkage
// beyond the session that produced them.
type FeedbackEvent struct {
	ID        string    `gorm:"primaryKey;size:36"`
	CompanyID string    `gorm:"not null;size:64;index"`
	SessionID string    `gorm:"not null;size:64;index"`
	Helpful   bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// FeedbackEventInput holds the raw values used to construct a FeedbackEvent.
type FeedbackEventInput struct {
	CompanyID string
	SessionID string
	Helpful   bool
}

// NewFeedbackEvent constructs a FeedbackEvent with validated fields.
func NewFeedbackEvent(input FeedbackEventInput) (FeedbackEvent, error) {
	companyID := strings.TrimSpace(input.CompanyID)
	if companyID == "" {
		return FeedbackEvent{}, ErrInvalidFeedbackCompanyID
	}

	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return FeedbackEvent{}, ErrInvalidFeedbackSessionID
	}

	return FeedbackEvent{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		SessionID: sessionID,
		Helpful:   input.Helpful,
	}, nil
}
