package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	WidgetPositionLeft  = "left"
	WidgetPositionRight = "right"

	DefaultWidgetPrimaryColor   = "#2563eb"
	DefaultWidgetFontFamily     = "system-ui, sans-serif"
	DefaultWidgetFontSizePx     = 15
	DefaultWidgetBorderRadiusPx = 16
	DefaultWidgetPosition       = WidgetPositionRight

	widgetConsentTextMaxLength      = 2000
	widgetWelcomeMessageMaxLength   = 1000
	widgetFallbackMessageMaxLength  = 1000
	widgetPrivacyPolicyURLMaxLength = 500
	widgetFontFamilyMaxLength       = 200
	widgetSuggestedQuestionMax      = 10
)

var (
	ErrInvalidWidgetCompanyID = errors.New("invalid_widget_company_id")
	ErrInvalidWidgetColor     = errors.New("invalid_widget_color")
	ErrInvalidWidgetPosition  = errors.New("invalid_widget_position")
	ErrInvalidWidgetText      = errors.New("invalid_widget_text")
)

var widgetColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// WidgetConfig holds the per-tenant widget appearance and behavior settings served
// to embedded widgets. WidgetKey scopes the configuration to one embedded instance.
type WidgetConfig struct {
	ID                 string    `gorm:"primaryKey;size:36"`
	CompanyID          string    `gorm:"not null;size:64;index"`
	WidgetKey          string    `gorm:"not null;size:36;uniqueIndex"`
	PrimaryColor       string    `gorm:"size:7"`
	FontFamily         string    `gorm:"size:200"`
	FontSizePx         int       `gorm:"not null;default:0"`
	BorderRadiusPx     int       `gorm:"not null;default:0"`
	Position           string    `gorm:"size:8"`
	RequireConsent     bool      `gorm:"not null;default:false"`
	ConsentText        string    `gorm:"size:2000"`
	WelcomeMessage     string    `gorm:"size:1000"`
	FallbackMessage    string    `gorm:"size:1000"`
	SuggestedQuestions []string  `gorm:"serializer:json;type:text"`
	PrivacyPolicyURL   string    `gorm:"size:500"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// WidgetConfigInput holds the raw values used to construct a WidgetConfig.
type WidgetConfigInput struct {
	CompanyID          string
	PrimaryColor       string
	FontFamily         string
	FontSizePx         int
	BorderRadiusPx     int
	Position           string
	RequireConsent     bool
	ConsentText        string
	WelcomeMessage     string
	FallbackMessage    string
	SuggestedQuestions []string
	PrivacyPolicyURL   string
}

// NewWidgetConfig constructs a WidgetConfig with validated, normalized fields and a
// freshly generated widget key. Omitted appearance fields stay empty; the widget
// client substitutes its built-in defaults for each field independently.
func NewWidgetConfig(input WidgetConfigInput) (WidgetConfig, error) {
	companyID := strings.TrimSpace(input.CompanyID)
	if companyID == "" {
		return WidgetConfig{}, ErrInvalidWidgetCompanyID
	}

	primaryColor := strings.TrimSpace(input.PrimaryColor)
	if primaryColor != "" && !widgetColorPattern.MatchString(primaryColor) {
		return WidgetConfig{}, fmt.Errorf("%w: %s", ErrInvalidWidgetColor, primaryColor)
	}

	position := strings.ToLower(strings.TrimSpace(input.Position))
	if position != "" && position != WidgetPositionLeft && position != WidgetPositionRight {
		return WidgetConfig{}, fmt.Errorf("%w: %s", ErrInvalidWidgetPosition, position)
	}

	fontFamily := strings.TrimSpace(input.FontFamily)
	if len(fontFamily) > widgetFontFamilyMaxLength {
		return WidgetConfig{}, fmt.Errorf("%w: font family too long", ErrInvalidWidgetText)
	}

	if err := validateWidgetText(input.ConsentText, widgetConsentTextMaxLength, "consent text"); err != nil {
		return WidgetConfig{}, err
	}
	if err := validateWidgetText(input.WelcomeMessage, widgetWelcomeMessageMaxLength, "welcome message"); err != nil {
		return WidgetConfig{}, err
	}
	if err := validateWidgetText(input.FallbackMessage, widgetFallbackMessageMaxLength, "fallback message"); err != nil {
		return WidgetConfig{}, err
	}
	if err := validateWidgetText(input.PrivacyPolicyURL, widgetPrivacyPolicyURLMaxLength, "privacy policy url"); err != nil {
		return WidgetConfig{}, err
	}

	suggestedQuestions := make([]string, 0, len(input.SuggestedQuestions))
	for _, questionValue := range input.SuggestedQuestions {
		trimmedQuestion := strings.TrimSpace(questionValue)
		if trimmedQuestion == "" {
			continue
		}
		suggestedQuestions = append(suggestedQuestions, trimmedQuestion)
		if len(suggestedQuestions) == widgetSuggestedQuestionMax {
			break
		}
	}

	return WidgetConfig{
		ID:                 uuid.NewString(),
		CompanyID:          companyID,
		WidgetKey:          uuid.NewString(),
		PrimaryColor:       primaryColor,
		FontFamily:         fontFamily,
		FontSizePx:         input.FontSizePx,
		BorderRadiusPx:     input.BorderRadiusPx,
		Position:           position,
		RequireConsent:     input.RequireConsent,
		ConsentText:        strings.TrimSpace(input.ConsentText),
		WelcomeMessage:     strings.TrimSpace(input.WelcomeMessage),
		FallbackMessage:    strings.TrimSpace(input.FallbackMessage),
		SuggestedQuestions: suggestedQuestions,
		PrivacyPolicyURL:   strings.TrimSpace(input.PrivacyPolicyURL),
	}, nil
}

func validateWidgetText(value string, maxLength int, fieldName string) error {
	if len(strings.TrimSpace(value)) > maxLength {
		return fmt.Errorf("%w: %s too long", ErrInvalidWidgetText, fieldName)
	}
	return nil
}
