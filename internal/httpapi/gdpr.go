package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bobotlabs/bobot/internal/metrics"
	"github.com/bobotlabs/bobot/internal/model"
)

// GDPRHandlers serves the visitor self-service data endpoints.
type GDPRHandlers struct {
	database *gorm.DB
	logger   *zap.Logger
}

// NewGDPRHandlers constructs a GDPRHandlers instance with the provided dependencies.
func NewGDPRHandlers(database *gorm.DB, logger *zap.Logger) *GDPRHandlers {
	return &GDPRHandlers{database: database, logger: logger}
}

type consentUpdateRequest struct {
	SessionID    string `json:"session_id"`
	ConsentGiven bool   `json:"consent_given"`
}

type myDataMessage struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type myDataPayload struct {
	ConversationID string          `json:"conversation_id"`
	ConsentGiven   bool            `json:"consent_given"`
	StartedAt      time.Time       `json:"started_at"`
	Messages       []myDataMessage `json:"messages"`
}

type dataControllerPayload struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// UpdateConsent records a visitor's consent decision against their conversation.
// Consent-gated widgets fire this before any message is sent, so when no
// conversation exists yet an accepted consent opens one to carry the decision.
func (h *GDPRHandlers) UpdateConsent(context *gin.Context) {
	companyID := strings.TrimSpace(context.Param("companyId"))

	var payload consentUpdateRequest
	if bindErr := context.BindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueInvalidJSON})
		return
	}

	payload.SessionID = strings.TrimSpace(payload.SessionID)
	if companyID == "" || payload.SessionID == "" {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueMissingFields})
		return
	}

	var conversation model.Conversation
	findErr := h.database.First(&conversation, "company_id = ? AND session_id = ?", companyID, payload.SessionID).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			h.recordConsentBeforeConversation(context, companyID, payload)
			return
		}
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueConsentRejected})
		return
	}

	consentFields := map[string]any{
		"consent_given": payload.ConsentGiven,
	}
	if payload.ConsentGiven {
		consentFields["consent_at"] = time.Now().UTC()
	}
	if err := h.database.Model(&conversation).Updates(consentFields).Error; err != nil {
		h.logger.Warn("update_consent", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueConsentRejected})
		return
	}

	metrics.ConsentUpdatesTotal.WithLabelValues(companyID, consentLabel(payload.ConsentGiven)).Inc()
	context.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// recordConsentBeforeConversation handles a consent update for a session with no
// conversation row yet. A withdrawal leaves nothing to record; an acceptance
// opens the conversation so the chat endpoint reuses it with consent intact.
func (h *GDPRHandlers) recordConsentBeforeConversation(context *gin.Context, companyID string, payload consentUpdateRequest) {
	if !payload.ConsentGiven {
		context.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	var company model.Company
	if err := h.database.First(&company, "id = ?", companyID).Error; err != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownCompany})
		return
	}

	conversation, buildErr := model.NewConversation(model.ConversationInput{
		CompanyID: companyID,
		SessionID: payload.SessionID,
		StartedAt: time.Now().UTC(),
	})
	if buildErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueMissingFields})
		return
	}
	conversation.ConsentGiven = true
	conversation.ConsentAt = time.Now().UTC()

	if err := h.database.Create(&conversation).Error; err != nil {
		h.logger.Warn("record_consent", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueConsentRejected})
		return
	}

	metrics.ConsentUpdatesTotal.WithLabelValues(companyID, consentLabel(true)).Inc()
	context.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MyData returns everything stored for the visitor's session: conversation
// metadata, the transcript, and the company's data-controller contact.
func (h *GDPRHandlers) MyData(context *gin.Context) {
	companyID := strings.TrimSpace(context.Param("companyId"))
	sessionID := strings.TrimSpace(context.Query("session_id"))
	if companyID == "" || sessionID == "" {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueMissingFields})
		return
	}

	var company model.Company
	if err := h.database.First(&company, "id = ?", companyID).Error; err != nil {
		context.JSON(http.StatusNotFound, gin.H{"error": errorValueUnknownCompany})
		return
	}

	controller := dataControllerPayload{
		Name:  company.DataControllerName,
		Email: company.DataControllerEmail,
	}

	var conversation model.Conversation
	findErr := h.database.First(&conversation, "company_id = ? AND session_id = ?", companyID, sessionID).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			context.JSON(http.StatusOK, gin.H{"message": "no_data_found", "data_controller": controller})
			return
		}
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	var storedMessages []model.ConversationMessage
	if err := h.database.Where("conversation_id = ?", conversation.ID).
		Order("created_at asc").Find(&storedMessages).Error; err != nil {
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueSaveFailed})
		return
	}

	transcript := make([]myDataMessage, 0, len(storedMessages))
	for _, storedMessage := range storedMessages {
		transcript = append(transcript, myDataMessage{
			Role:      storedMessage.Role,
			Text:      storedMessage.Text,
			CreatedAt: storedMessage.CreatedAt,
		})
	}

	context.JSON(http.StatusOK, gin.H{
		"data": myDataPayload{
			ConversationID: conversation.ID,
			ConsentGiven:   conversation.ConsentGiven,
			StartedAt:      conversation.StartedAt,
			Messages:       transcript,
		},
		"data_controller": controller,
	})
}

// DeleteMyData removes the visitor's conversation, transcript, and feedback events.
func (h *GDPRHandlers) DeleteMyData(context *gin.Context) {
	companyID := strings.TrimSpace(context.Param("companyId"))
	sessionID := strings.TrimSpace(context.Query("session_id"))
	if companyID == "" || sessionID == "" {
		context.JSON(http.StatusBadRequest, gin.H{"error": errorValueMissingFields})
		return
	}

	var conversation model.Conversation
	findErr := h.database.First(&conversation, "company_id = ? AND session_id = ?", companyID, sessionID).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			context.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueDeleteFailed})
		return
	}

	deleteErr := h.database.Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Where("conversation_id = ?", conversation.ID).
			Delete(&model.ConversationMessage{}).Error; err != nil {
			return err
		}
		if err := transaction.Where("company_id = ? AND session_id = ?", companyID, sessionID).
			Delete(&model.FeedbackEvent{}).Error; err != nil {
			return err
		}
		return transaction.Delete(&conversation).Error
	})
	if deleteErr != nil {
		h.logger.Warn("delete_my_data", zap.Error(deleteErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": errorValueDeleteFailed})
		return
	}

	metrics.DataDeletionsTotal.WithLabelValues(companyID).Inc()
	context.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func consentLabel(consentGiven bool) string {
	if consentGiven {
		return "given"
	}
	return "revoked"
}
