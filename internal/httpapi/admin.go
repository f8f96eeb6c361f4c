package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bobotlabs/bobot/internal/model"
)

// AdminHandlers serves the bearer-authenticated management endpoints.
type AdminHandlers struct {
	database *gorm.DB
	logger   *zap.Logger
}

// NewAdminHandlers constructs an AdminHandlers instance with the provided dependencies.
func NewAdminHandlers(database *gorm.DB, logger *zap.Logger) *AdminHandlers {
	return &AdminHandlers{database: database, logger: logger}
}

type createCompanyRequest struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	DataControllerName  string `json:"data_controller_name"`
	DataControllerEmail string `json:"data_controller_email"`
}

type widgetConfigUpsertRequest struct {
	PrimaryColor       string   `json:"primary_color"`
	FontFamily         string   `json:"font_family"`
	FontSize           int      `json:"font_size"`
	BorderRadius       int      `json:"border_radius"`
	Position           string   `json:"position"`
	RequireConsent     bool     `json:"require_consent"`
	ConsentText        string   `json:"consent_text"`
	WelcomeMessage     string   `json:"welcome_message"`
	FallbackMessage    string   `json:"fallback_message"`
	SuggestedQuestions []string `json:"suggested_questions"`
	PrivacyPolicyURL   string   `json:"privacy_policy_url"`
}

type createFAQEntryRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

type conversationSummaryResponse struct {
	ID            string `json:"id"`
	SessionID     string `json:"session_id"`
	ConsentGiven  bool   `json:"consent_given"`
	StartedAt     string `json:"started_at"`
	LastMessageAt string `json:"last_message_at"`
	MessageCount  int64  `json:"message_count"`
}

// CreateCompany registers a new customer company.
func (h *AdminHandlers) CreateCompany(context *gin.Context) {
	var payload createCompanyRequest
	if bindErr := context.BindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidJSON})
		return
	}

	company, companyErr := model.NewCompany(model.CompanyInput{
		ID:                  payload.ID,
		Name:                payload.Name,
		DataControllerName:  payload.DataControllerName,
		DataControllerEmail: payload.DataControllerEmail,
	})
	if companyErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": companyErr.Error()})
		return
	}

	if err := h.database.Create(&company).Error; err != nil {
		h.logger.Warn("save_company", zap.Error(err))
		context.JSON(http.StatusConflict, gin.H{"error": errorValueSaveFailed})
		return
	}

	context.JSON(http.StatusOK, gin.H{"status": "ok", "company_id": company.ID})
}

// ListCompanies returns all registered companies.
func (h *AdminHandlers) ListCompanies(context *gin.Context) {
	var companies []model.Company
	if err := h.database.Order("created_at asc").Find(&companies).Error; err != nil {
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}
	context.JSON(http.StatusOK, gin.H{"companies": companies})
}

// UpsertWidgetConfig creates or replaces the widget configuration for a company.
// The widget key is preserved across updates so embedded snippets keep working.
func (h *AdminHandlers) UpsertWidgetConfig(context *gin.Context) {
	companyID := strings.TrimSpace(context.Param("id"))

	var company model.Company
	if err := h.database.First(&company, "id = ?", companyID).Error; err != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownCompany})
		return
	}

	var payload widgetConfigUpsertRequest
	if bindErr := context.BindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidJSON})
		return
	}

	widgetConfig, widgetConfigErr := model.NewWidgetConfig(model.WidgetConfigInput{
		CompanyID:          company.ID,
		PrimaryColor:       payload.PrimaryColor,
		FontFamily:         payload.FontFamily,
		FontSizePx:         payload.FontSize,
		BorderRadiusPx:     payload.BorderRadius,
		Position:           payload.Position,
		RequireConsent:     payload.RequireConsent,
		ConsentText:        payload.ConsentText,
		WelcomeMessage:     payload.WelcomeMessage,
		FallbackMessage:    payload.FallbackMessage,
		SuggestedQuestions: payload.SuggestedQuestions,
		PrivacyPolicyURL:   payload.PrivacyPolicyURL,
	})
	if widgetConfigErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": widgetConfigErr.Error()})
		return
	}

	var existingConfig model.WidgetConfig
	findErr := h.database.First(&existingConfig, "company_id = ?", company.ID).Error
	if findErr == nil {
		widgetConfig.ID = existingConfig.ID
		widgetConfig.WidgetKey = existingConfig.WidgetKey
		widgetConfig.CreatedAt = existingConfig.CreatedAt
		if err := h.database.Save(&widgetConfig).Error; err != nil {
			h.logger.Warn("update_widget_config", zap.Error(err))
			context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
			return
		}
		context.JSON(http.StatusOK, gin.H{"status": "ok", "widget_key": widgetConfig.WidgetKey})
		return
	}
	if !errors.Is(findErr, gorm.ErrRecordNotFound) {
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	if err := h.database.Create(&widgetConfig).Error; err != nil {
		h.logger.Warn("save_widget_config", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	context.JSON(http.StatusOK, gin.H{"status": "ok", "widget_key": widgetConfig.WidgetKey})
}

// CreateFAQEntry adds a question/answer pair to a company's answer pool.
func (h *AdminHandlers) CreateFAQEntry(context *gin.Context) {
	companyID := strings.TrimSpace(context.Param("id"))

	var company model.Company
	if err := h.database.First(&company, "id = ?", companyID).Error; err != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownCompany})
		return
	}

	var payload createFAQEntryRequest
	if bindErr := context.BindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidJSON})
		return
	}

	faqEntry, faqErr := model.NewFAQEntry(model.FAQEntryInput{
		CompanyID: company.ID,
		Question:  payload.Question,
		Answer:    payload.Answer,
		Category:  payload.Category,
	})
	if faqErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": faqErr.Error()})
		return
	}

	if err := h.database.Create(&faqEntry).Error; err != nil {
		h.logger.Warn("save_faq_entry", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	context.JSON(http.StatusOK, gin.H{"status": "ok", "faq_id": faqEntry.ID})
}

// ListConversations returns conversation summaries for a company.
func (h *AdminHandlers) ListConversations(context *gin.Context) {
	companyID := strings.TrimSpace(context.Param("id"))

	var company model.Company
	if err := h.database.First(&company, "id = ?", companyID).Error; err != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownCompany})
		return
	}

	var conversations []model.Conversation
	if err := h.database.Where("company_id = ?", company.ID).
		Order("started_at desc").Find(&conversations).Error; err != nil {
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	summaries := make([]conversationSummaryResponse, 0, len(conversations))
	for _, conversation := range conversations {
		var messageCount int64
		if err := h.database.Model(&model.ConversationMessage{}).
			Where("conversation_id = ?", conversation.ID).Count(&messageCount).Error; err != nil {
			context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
			return
		}
		summaries = append(summaries, conversationSummaryResponse{
			ID:            conversation.ID,
			SessionID:     conversation.SessionID,
			ConsentGiven:  conversation.ConsentGiven,
			StartedAt:     conversation.StartedAt.UTC().Format(time.RFC3339),
			LastMessageAt: conversation.LastMessageAt.UTC().Format(time.RFC3339),
			MessageCount:  messageCount,
		})
	}

	context.JSON(http.StatusOK, gin.H{"conversations": summaries})
}
