package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testCompanyID              = "acme"
	testCompanyName            = "Acme AB"
	testCompanyControllerName  = "Data Protection Office"
	testCompanyControllerEmail = "DPO@acme.example"
)

func TestNewCompanyValidatesAndNormalizes(t *testing.T) {
	company, err := NewCompany(CompanyInput{
		ID:                  "  " + strings.ToUpper(testCompanyID) + " ",
		Name:                "  " + testCompanyName + " ",
		DataControllerName:  testCompanyControllerName,
		DataControllerEmail: testCompanyControllerEmail,
	})
	require.NoError(t, err)

	require.Equal(t, testCompanyID, company.ID)
	require.Equal(t, testCompanyName, company.Name)
	require.Equal(t, testCompanyControllerName, company.DataControllerName)
	require.Equal(t, strings.ToLower(testCompanyControllerEmail), company.DataControllerEmail)
}

func TestNewCompanyRejectsInvalidID(t *testing.T) {
	invalidIdentifiers := []string{"", "   ", "-leading-dash", "has space", "ümlaut", strings.Repeat("a", companyIDMaxLength+1)}
	for _, identifier := range invalidIdentifiers {
		_, err := NewCompany(CompanyInput{ID: identifier, Name: testCompanyName})
		require.ErrorIs(t, err, ErrInvalidCompanyID, "identifier %q", identifier)
	}
}

func TestNewCompanyRejectsInvalidName(t *testing.T) {
	_, err := NewCompany(CompanyInput{ID: testCompanyID, Name: "   "})
	require.ErrorIs(t, err, ErrInvalidCompanyName)

	_, err = NewCompany(CompanyInput{ID: testCompanyID, Name: strings.Repeat("a", companyNameMaxLength+1)})
	require.ErrorIs(t, err, ErrInvalidCompanyName)
}

func TestNewCompanyRejectsInvalidControllerEmail(t *testing.T) {
	_, err := NewCompany(CompanyInput{
		ID:                  testCompanyID,
		Name:                testCompanyName,
		DataControllerEmail: "not-an-email",
	})
	require.ErrorIs(t, err, ErrInvalidCompanyEmail)
}

func TestNewCompanyAllowsEmptyControllerFields(t *testing.T) {
	company, err := NewCompany(CompanyInput{ID: testCompanyID, Name: testCompanyName})
	require.NoError(t, err)
	require.Empty(t, company.DataControllerName)
	require.Empty(t, company.DataControllerEmail)
}
