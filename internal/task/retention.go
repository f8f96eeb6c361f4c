package task

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bobotlabs/bobot/internal/metrics"
	"github.com/bobotlabs/bobot/internal/model"
)

// RetentionConfig defines how long idle conversations are kept.
type RetentionConfig struct {
	RetentionDays int
}

// RetentionJob purges conversations whose last activity is older than the
// retention window, together with their transcripts and feedback events.
type RetentionJob struct {
	database *gorm.DB
	logger   *zap.Logger
	config   RetentionConfig
}

// NewRetentionJob builds a RetentionJob.
func NewRetentionJob(database *gorm.DB, logger *zap.Logger, config RetentionConfig) *RetentionJob {
	return &RetentionJob{
		database: database,
		logger:   logger,
		config:   config,
	}
}

// Run deletes expired conversations one batch per invocation.
func (job *RetentionJob) Run(ctx context.Context) error {
	if job.config.RetentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -job.config.RetentionDays)

	var expiredConversations []model.Conversation
	err := job.database.WithContext(ctx).
		Where("last_message_at < ?", cutoff).
		Find(&expiredConversations).Error
	if err != nil {
		return err
	}

	for _, conversation := range expiredConversations {
		purgeErr := job.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
			if deleteErr := transaction.Where("conversation_id = ?", conversation.ID).
				Delete(&model.ConversationMessage{}).Error; deleteErr != nil {
				return deleteErr
			}
			if deleteErr := transaction.Where("company_id = ? AND session_id = ?", conversation.CompanyID, conversation.SessionID).
				Delete(&model.FeedbackEvent{}).Error; deleteErr != nil {
				return deleteErr
			}
			return transaction.Delete(&model.Conversation{}, "id = ?", conversation.ID).Error
		})
		if purgeErr != nil {
			if job.logger != nil {
				job.logger.Warn("retention_purge_failed", zap.Error(purgeErr), zap.String("conversation_id", conversation.ID))
			}
			continue
		}
		metrics.ConversationsPurgedTotal.Inc()
	}

	return nil
}
