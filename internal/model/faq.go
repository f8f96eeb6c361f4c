package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	faqQuestionMaxLength = 1000
	faqAnswerMaxLength   = 4000
	faqCategoryMaxLength = 100
)

var (
	ErrInvalidFAQCompanyID = errors.New("invalid_faq_company_id")
	ErrInvalidFAQQuestion  = errors.New("invalid_faq_question")
	ErrInvalidFAQAnswer    = errors.New("invalid_faq_answer")
)

// FAQEntry is a curated question/answer pair the chat answerer matches against.
type FAQEntry struct {
	ID        string    `gorm:"primaryKey;size:36"`
	CompanyID string    `gorm:"not null;size:64;index"`
	Question  string    `gorm:"not null;size:1000"`
	Answer    string    `gorm:"not null;size:4000"`
	Category  string    `gorm:"size:100"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// FAQEntryInput holds the raw values used to construct a FAQEntry.
type FAQEntryInput struct {
	CompanyID string
	Question  string
	Answer    string
	Category  string
}

// NewFAQEntry constructs a FAQEntry with validated, normalized fields.
func NewFAQEntry(input FAQEntryInput) (FAQEntry, error) {
	companyID := strings.TrimSpace(input.CompanyID)
	if companyID == "" {
		return FAQEntry{}, ErrInvalidFAQCompanyID
	}

	question := strings.TrimSpace(input.Question)
	if question == "" || len(question) > faqQuestionMaxLength {
		return FAQEntry{}, ErrInvalidFAQQuestion
	}

	answer := strings.TrimSpace(input.Answer)
	if answer == "" || len(answer) > faqAnswerMaxLength {
		return FAQEntry{}, ErrInvalidFAQAnswer
	}

	category := strings.TrimSpace(input.Category)
	if len(category) > faqCategoryMaxLength {
		category = category[:faqCategoryMaxLength]
	}

	return FAQEntry{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Question:  question,
		Answer:    answer,
		Category:  category,
	}, nil
}
