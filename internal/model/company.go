package model

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

const (
	companyIDMaxLength              = 64
	companyNameMaxLength            = 200
	companyControllerNameMaxLength  = 200
	companyControllerEmailMaxLength = 320
)

var (
	ErrInvalidCompanyID    = errors.New("invalid_company_id")
	ErrInvalidCompanyName  = errors.New("invalid_company_name")
	ErrInvalidCompanyEmail = errors.New("invalid_company_email")
)

var companyIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Company is a customer organization owning one widget configuration and its conversations.
type Company struct {
	ID                  string    `gorm:"primaryKey;size:64"`
	Name                string    `gorm:"not null;size:200"`
	DataControllerName  string    `gorm:"size:200"`
	DataControllerEmail string    `gorm:"size:320"`
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

// CompanyInput holds the raw values used to construct a Company.
type CompanyInput struct {
	ID                  string
	Name                string
	DataControllerName  string
	DataControllerEmail string
}

// NewCompany constructs a Company with validated, normalized fields. The identifier
// is a caller-chosen slug because it is embedded in widget snippets and request paths.
func NewCompany(input CompanyInput) (Company, error) {
	companyID := strings.ToLower(strings.TrimSpace(input.ID))
	if companyID == "" || len(companyID) > companyIDMaxLength || !companyIDPattern.MatchString(companyID) {
		return Company{}, fmt.Errorf("%w: %q", ErrInvalidCompanyID, input.ID)
	}

	companyName := strings.TrimSpace(input.Name)
	if companyName == "" || len(companyName) > companyNameMaxLength {
		return Company{}, ErrInvalidCompanyName
	}

	controllerName := strings.TrimSpace(input.DataControllerName)
	if len(controllerName) > companyControllerNameMaxLength {
		return Company{}, fmt.Errorf("%w: data controller name too long", ErrInvalidCompanyName)
	}

	controllerEmail := strings.ToLower(strings.TrimSpace(input.DataControllerEmail))
	if controllerEmail != "" {
		if len(controllerEmail) > companyControllerEmailMaxLength {
			return Company{}, ErrInvalidCompanyEmail
		}
		if _, parseErr := mail.ParseAddress(controllerEmail); parseErr != nil {
			return Company{}, fmt.Errorf("%w: %s", ErrInvalidCompanyEmail, controllerEmail)
		}
	}

	return Company{
		ID:                  companyID,
		Name:                companyName,
		DataControllerName:  controllerName,
		DataControllerEmail: controllerEmail,
	}, nil
}
