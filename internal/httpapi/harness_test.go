package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bobotlabs/bobot/internal/httpapi"
	"github.com/bobotlabs/bobot/internal/model"
	"github.com/bobotlabs/bobot/internal/storage"
	"github.com/bobotlabs/bobot/internal/testutil"
)

const testAdminBearerToken = "test-admin-token"

type apiHarness struct {
	router   *gin.Engine
	database *gorm.DB
}

func buildAPIHarness(testingT *testing.T) apiHarness {
	testingT.Helper()

	gin.SetMode(gin.TestMode)
	logger, loggerErr := zap.NewDevelopment()
	require.NoError(testingT, loggerErr)

	sqliteDatabase := testutil.NewSQLiteTestDatabase(testingT)
	database, openErr := storage.OpenDatabase(sqliteDatabase.Configuration())
	require.NoError(testingT, openErr)
	database = testutil.ConfigureDatabaseLogger(testingT, database)
	require.NoError(testingT, storage.AutoMigrate(database))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(httpapi.RequestLogger(logger))

	answerer := httpapi.NewFAQAnswerer(database)
	publicHandlers := httpapi.NewPublicHandlers(database, logger, answerer)
	gdprHandlers := httpapi.NewGDPRHandlers(database, logger)
	adminHandlers := httpapi.NewAdminHandlers(database, logger)

	router.GET("/widget/key/:widgetKey/config", publicHandlers.WidgetConfigByKey)
	router.GET("/widget/:companyId/config", publicHandlers.WidgetConfigByCompany)
	router.POST("/chat/:companyId", publicHandlers.Chat)
	router.POST("/chat/:companyId/feedback", publicHandlers.ChatFeedback)
	router.POST("/gdpr/:companyId/consent", gdprHandlers.UpdateConsent)
	router.GET("/gdpr/:companyId/my-data", gdprHandlers.MyData)
	router.DELETE("/gdpr/:companyId/my-data", gdprHandlers.DeleteMyData)

	adminGroup := router.Group("/api/admin")
	adminGroup.Use(httpapi.AdminAuthMiddleware(testAdminBearerToken))
	adminGroup.POST("/companies", adminHandlers.CreateCompany)
	adminGroup.GET("/companies", adminHandlers.ListCompanies)
	adminGroup.PUT("/companies/:id/widget-config", adminHandlers.UpsertWidgetConfig)
	adminGroup.POST("/companies/:id/faq", adminHandlers.CreateFAQEntry)
	adminGroup.GET("/companies/:id/conversations", adminHandlers.ListConversations)

	return apiHarness{router: router, database: database}
}

func performJSONRequest(testingT *testing.T, router *gin.Engine, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	testingT.Helper()

	var requestBody io.Reader
	if body != nil {
		encoded, encodeErr := json.Marshal(body)
		require.NoError(testingT, encodeErr)
		requestBody = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, requestBody)
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAdminBearerToken}
}

func decodeJSONBody(testingT *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	testingT.Helper()

	var decoded map[string]any
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	return decoded
}

func insertCompany(testingT *testing.T, database *gorm.DB, companyID string) model.Company {
	testingT.Helper()

	company, companyErr := model.NewCompany(model.CompanyInput{
		ID:                  companyID,
		Name:                "Acme AB",
		DataControllerName:  "Data Protection Office",
		DataControllerEmail: "dpo@acme.example",
	})
	require.NoError(testingT, companyErr)
	require.NoError(testingT, database.Create(&company).Error)
	return company
}

func insertWidgetConfig(testingT *testing.T, database *gorm.DB, companyID string, requireConsent bool) model.WidgetConfig {
	testingT.Helper()

	widgetConfig, configErr := model.NewWidgetConfig(model.WidgetConfigInput{
		CompanyID:          companyID,
		PrimaryColor:       "#2563eb",
		Position:           model.WidgetPositionRight,
		RequireConsent:     requireConsent,
		WelcomeMessage:     "Hi! How can I help?",
		FallbackMessage:    "Sorry, I do not know that one.",
		SuggestedQuestions: []string{"Opening hours?"},
	})
	require.NoError(testingT, configErr)
	require.NoError(testingT, database.Create(&widgetConfig).Error)
	return widgetConfig
}

func insertFAQEntry(testingT *testing.T, database *gorm.DB, companyID string, question string, answer string) model.FAQEntry {
	testingT.Helper()

	faqEntry, faqErr := model.NewFAQEntry(model.FAQEntryInput{
		CompanyID: companyID,
		Question:  question,
		Answer:    answer,
	})
	require.NoError(testingT, faqErr)
	require.NoError(testingT, database.Create(&faqEntry).Error)
	return faqEntry
}

func sendChat(testingT *testing.T, api apiHarness, companyID string, sessionID string, question string) *httptest.ResponseRecorder {
	testingT.Helper()

	return performJSONRequest(testingT, api.router, http.MethodPost, "/chat/"+companyID, map[string]any{
		"question":   question,
		"session_id": sessionID,
	}, nil)
}
