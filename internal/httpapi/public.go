package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bobotlabs/bobot/internal/metrics"
	"github.com/bobotlabs/bobot/internal/model"
)

const (
	errorValueInvalidJSON     = "invalid_json"
	errorValueMissingFields   = "missing_fields"
	errorValueUnknownCompany  = "unknown_company"
	errorValueUnknownWidget   = "unknown_widget"
	errorValueRateLimited     = "rate_limited"
	errorValueSaveFailed      = "save_failed"
	errorValueAnswerFailed    = "answer_failed"
	errorValueInvalidSession  = "invalid_session"
	errorValueInvalidHelpful  = "invalid_helpful"
	errorValueDeleteFailed    = "delete_failed"
	errorValueConsentRejected = "consent_update_failed"

	chatQuestionMaxLength = 4000

	defaultRateWindow                = 10 * time.Second
	defaultMaxRequestsPerIPPerWindow = 20
)

// PublicHandlers serves the unauthenticated endpoints consumed by embedded widgets.
type PublicHandlers struct {
	database                  *gorm.DB
	logger                    *zap.Logger
	answerer                  Answerer
	rateWindow                time.Duration
	maxRequestsPerIPPerWindow int
	rateCountersByIP          map[string]int
	rateCountersMutex         sync.Mutex
}

// NewPublicHandlers constructs a PublicHandlers instance with the provided dependencies.
func NewPublicHandlers(database *gorm.DB, logger *zap.Logger, answerer Answerer) *PublicHandlers {
	return &PublicHandlers{
		database:                  database,
		logger:                    logger,
		answerer:                  answerer,
		rateWindow:                defaultRateWindow,
		maxRequestsPerIPPerWindow: defaultMaxRequestsPerIPPerWindow,
		rateCountersByIP:          make(map[string]int),
	}
}

type widgetConfigResponse struct {
	CompanyID           string   `json:"company_id"`
	WidgetKey           string   `json:"widget_key,omitempty"`
	PrimaryColor        string   `json:"primary_color,omitempty"`
	FontFamily          string   `json:"font_family,omitempty"`
	FontSize            int      `json:"font_size,omitempty"`
	BorderRadius        int      `json:"border_radius,omitempty"`
	Position            string   `json:"position,omitempty"`
	RequireConsent      bool     `json:"require_consent"`
	ConsentText         string   `json:"consent_text,omitempty"`
	WelcomeMessage      string   `json:"welcome_message,omitempty"`
	FallbackMessage     string   `json:"fallback_message,omitempty"`
	SuggestedQuestions  []string `json:"suggested_questions,omitempty"`
	PrivacyPolicyURL    string   `json:"privacy_policy_url,omitempty"`
	DataControllerName  string   `json:"data_controller_name,omitempty"`
	DataControllerEmail string   `json:"data_controller_email,omitempty"`
}

type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
	WidgetKey string `json:"widget_key"`
}

type chatResponse struct {
	Answer         string         `json:"answer"`
	HadAnswer      bool           `json:"had_answer"`
	Confidence     int            `json:"confidence"`
	SourcesDetail  []AnswerSource `json:"sources_detail"`
	ConversationID string         `json:"conversation_id"`
}

// WidgetConfigByKey returns the configuration for one embedded widget instance.
func (h *PublicHandlers) WidgetConfigByKey(context *gin.Context) {
	widgetKey := strings.TrimSpace(context.Param("widgetKey"))
	if widgetKey == "" {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueMissingFields})
		return
	}

	var widgetConfig model.WidgetConfig
	if err := h.database.First(&widgetConfig, "widget_key = ?", widgetKey).Error; err != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownWidget})
		return
	}

	h.respondWidgetConfig(context, widgetConfig)
}

// WidgetConfigByCompany returns the company-scoped widget configuration.
func (h *PublicHandlers) WidgetConfigByCompany(context *gin.Context) {
	companyID := strings.TrimSpace(context.Param("companyId"))
	if companyID == "" {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueMissingFields})
		return
	}

	var widgetConfig model.WidgetConfig
	if err := h.database.First(&widgetConfig, "company_id = ?", companyID).Error; err != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownCompany})
		return
	}

	h.respondWidgetConfig(context, widgetConfig)
}

func (h *PublicHandlers) respondWidgetConfig(context *gin.Context, widgetConfig model.WidgetConfig) {
	var company model.Company
	if err := h.database.First(&company, "id = ?", widgetConfig.CompanyID).Error; err != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownCompany})
		return
	}

	context.JSON(http.StatusOK, widgetConfigResponse{
		CompanyID:           widgetConfig.CompanyID,
		WidgetKey:           widgetConfig.WidgetKey,
		PrimaryColor:        widgetConfig.PrimaryColor,
		FontFamily:          widgetConfig.FontFamily,
		FontSize:            widgetConfig.FontSizePx,
		BorderRadius:        widgetConfig.BorderRadiusPx,
		Position:            widgetConfig.Position,
		RequireConsent:      widgetConfig.RequireConsent,
		ConsentText:         widgetConfig.ConsentText,
		WelcomeMessage:      widgetConfig.WelcomeMessage,
		FallbackMessage:     widgetConfig.FallbackMessage,
		SuggestedQuestions:  widgetConfig.SuggestedQuestions,
		PrivacyPolicyURL:    widgetConfig.PrivacyPolicyURL,
		DataControllerName:  company.DataControllerName,
		DataControllerEmail: company.DataControllerEmail,
	})
}

// Chat answers a visitor question and appends both sides to the stored transcript.
// The conversation is created on first contact for a session and reused afterwards.
func (h *PublicHandlers) Chat(context *gin.Context) {
	clientIP := context.ClientIP()
	if h.isRateLimited(clientIP) {
		context.JSON(http.StatusTooManyRequests, gin.H{"error": errorValueRateLimited})
		return
	}

	companyID := strings.TrimSpace(context.Param("companyId"))

	var payload chatRequest
	if bindErr := context.BindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidJSON})
		return
	}

	payload.Question = strings.TrimSpace(payload.Question)
	payload.SessionID = strings.TrimSpace(payload.SessionID)
	if companyID == "" || payload.Question == "" || payload.SessionID == "" {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueMissingFields})
		return
	}
	if len(payload.Question) > chatQuestionMaxLength {
		payload.Question = truncateOnRuneBoundary(payload.Question, chatQuestionMaxLength)
	}

	var company model.Company
	if err := h.database.First(&company, "id = ?", companyID).Error; err != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownCompany})
		return
	}

	conversation, conversationErr := h.findOrCreateConversation(context, company.ID, payload.SessionID)
	if conversationErr != nil {
		h.logger.Warn("open_conversation", zap.Error(conversationErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	userMessage, userMessageErr := model.NewConversationMessage(model.ConversationMessageInput{
		ConversationID: conversation.ID,
		Role:           model.MessageRoleUser,
		Text:           payload.Question,
	})
	if userMessageErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueMissingFields})
		return
	}
	if err := h.database.Create(&userMessage).Error; err != nil {
		h.logger.Warn("save_user_message", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	answer, answerErr := h.answerer.Answer(context.Request.Context(), company.ID, payload.Question)
	if answerErr != nil {
		h.logger.Warn("answer_question", zap.Error(answerErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueAnswerFailed})
		return
	}
	if !answer.HadAnswer && answer.Text == "" {
		answer.Text = h.fallbackAnswerText(company.ID)
		answer.Confidence = 0
	}

	botMessage, botMessageErr := model.NewConversationMessage(model.ConversationMessageInput{
		ConversationID: conversation.ID,
		Role:           model.MessageRoleBot,
		Text:           answer.Text,
		HadAnswer:      answer.HadAnswer,
		Confidence:     answer.Confidence,
	})
	if botMessageErr != nil {
		h.logger.Warn("build_bot_message", zap.Error(botMessageErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}
	if err := h.database.Create(&botMessage).Error; err != nil {
		h.logger.Warn("save_bot_message", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	if err := h.database.Model(&model.Conversation{}).Where("id = ?", conversation.ID).
		Update("last_message_at", time.Now().UTC()).Error; err != nil {
		h.logger.Warn("touch_conversation", zap.Error(err))
	}

	metrics.ChatMessagesTotal.WithLabelValues(company.ID, answeredLabel(answer.HadAnswer)).Inc()

	sources := answer.Sources
	if sources == nil {
		sources = []AnswerSource{}
	}
	context.JSON(http.StatusOK, chatResponse{
		Answer:         answer.Text,
		HadAnswer:      answer.HadAnswer,
		Confidence:     botMessage.Confidence,
		SourcesDetail:  sources,
		ConversationID: conversation.ID,
	})
}

// ChatFeedback records a helpful / not-helpful vote. The widget treats this as
// fire-and-forget, so the handler answers quickly and never blocks on extras.
func (h *PublicHandlers) ChatFeedback(context *gin.Context) {
	companyID := strings.TrimSpace(context.Param("companyId"))
	sessionID := strings.TrimSpace(context.Query("session_id"))
	helpfulValue := strings.TrimSpace(context.Query("helpful"))

	if companyID == "" || sessionID == "" {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidSession})
		return
	}

	helpful, parseErr := strconv.ParseBool(helpfulValue)
	if parseErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidHelpful})
		return
	}

	var company model.Company
	if err := h.database.First(&company, "id = ?", companyID).Error; err != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownCompany})
		return
	}

	feedbackEvent, feedbackErr := model.NewFeedbackEvent(model.FeedbackEventInput{
		CompanyID: company.ID,
		SessionID: sessionID,
		Helpful:   helpful,
	})
	if feedbackErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidSession})
		return
	}

	if err := h.database.Create(&feedbackEvent).Error; err != nil {
		h.logger.Warn("save_feedback", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	metrics.FeedbackVotesTotal.WithLabelValues(company.ID, helpfulLabel(helpful)).Inc()
	context.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *PublicHandlers) findOrCreateConversation(context *gin.Context, companyID string, sessionID string) (model.Conversation, error) {
	var conversation model.Conversation
	err := h.database.First(&conversation, "company_id = ? AND session_id = ?", companyID, sessionID).Error
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Conversation{}, err
	}

	conversation, buildErr := model.NewConversation(model.ConversationInput{
		CompanyID: companyID,
		SessionID: sessionID,
		StartedAt: time.Now().UTC(),
	})
	if buildErr != nil {
		return model.Conversation{}, buildErr
	}
	if createErr := h.database.Create(&conversation).Error; createErr != nil {
		return model.Conversation{}, createErr
	}
	metrics.ConversationsStartedTotal.WithLabelValues(companyID).Inc()
	return conversation, nil
}

func (h *PublicHandlers) fallbackAnswerText(companyID string) string {
	var widgetConfig model.WidgetConfig
	if err := h.database.First(&widgetConfig, "company_id = ?", companyID).Error; err == nil {
		if strings.TrimSpace(widgetConfig.FallbackMessage) != "" {
			return widgetConfig.FallbackMessage
		}
	}
	return "I could not find an answer to that. Could you rephrase the question?"
}

// truncateOnRuneBoundary cuts value to at most maxBytes without splitting a
// multi-byte rune, so stored questions stay valid UTF-8.
func truncateOnRuneBoundary(value string, maxBytes int) string {
	if len(value) <= maxBytes {
		return value
	}
	cutIndex := maxBytes
	for cutIndex > 0 && !utf8.RuneStart(value[cutIndex]) {
		cutIndex--
	}
	return value[:cutIndex]
}

func (h *PublicHandlers) isRateLimited(ip string) bool {
	nowBucket := time.Now().Unix() / int64(h.rateWindow.Seconds())
	key := fmt.Sprintf("%s:%d", ip, nowBucket)

	h.rateCountersMutex.Lock()
	defer h.rateCountersMutex.Unlock()

	h.rateCountersByIP[key]++
	return h.rateCountersByIP[key] > h.maxRequestsPerIPPerWindow
}

func answeredLabel(hadAnswer bool) string {
	if hadAnswer {
		return "answered"
	}
	return "fallback"
}

func helpfulLabel(helpful bool) string {
	if helpful {
		return "helpful"
	}
	return "not_helpful"
}
