package widget

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// SnapshotTTL is the freshness window for persisted conversations. A snapshot
// older than this is treated as absent on read; nothing sweeps expired files.
const SnapshotTTL = 24 * time.Hour

const (
	consentSentinelContent = "true"
	snapshotFileMode       = 0o600
	snapshotDirMode        = 0o700
)

// MessageType distinguishes visitor messages from bot messages.
type MessageType string

const (
	MessageTypeUser MessageType = "user"
	MessageTypeBot  MessageType = "bot"
)

// Message is one transcript entry held by the widget. Messages are immutable
// after creation; feedback lives in the separate per-conversation feedback map.
type Message struct {
	ID         int64       `json:"id"`
	Type       MessageType `json:"type"`
	Text       string      `json:"text"`
	Time       int64       `json:"time"`
	HadAnswer  bool        `json:"hadAnswer,omitempty"`
	Confidence int         `json:"confidence,omitempty"`
	Sources    []Source    `json:"sources,omitempty"`
}

// Snapshot is the persisted conversation state for one tenant.
type Snapshot struct {
	Messages       []Message      `json:"messages"`
	SessionID      string         `json:"sessionId"`
	ConversationID string         `json:"conversationId"`
	FeedbackGiven  map[int64]bool `json:"feedbackGiven"`
	Timestamp      int64          `json:"timestamp"`
}

// SnapshotStore persists conversation snapshots and consent sentinels as files
// under a state directory, one pair per tenant. Every operation is best-effort:
// reads answer nil on any problem and writes log failures without surfacing them.
type SnapshotStore struct {
	directory string
	logger    *zap.Logger
	now       func() time.Time
}

// NewSnapshotStore builds a SnapshotStore rooted at the given directory.
func NewSnapshotStore(directory string, logger *zap.Logger) *SnapshotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStore{
		directory: directory,
		logger:    logger,
		now:       time.Now,
	}
}

// Load reads the snapshot for a tenant. It answers nil for a missing file, an
// unreadable or unparsable file, and a snapshot at or past the freshness window.
func (store *SnapshotStore) Load(companyID string) *Snapshot {
	rawSnapshot, readErr := os.ReadFile(store.snapshotPath(companyID))
	if readErr != nil {
		return nil
	}

	var snapshot Snapshot
	if unmarshalErr := json.Unmarshal(rawSnapshot, &snapshot); unmarshalErr != nil {
		store.logger.Debug("snapshot_parse_failed", zap.String("company", companyID), zap.Error(unmarshalErr))
		return nil
	}

	savedAt := time.UnixMilli(snapshot.Timestamp)
	if store.now().Sub(savedAt) >= SnapshotTTL {
		return nil
	}

	if snapshot.FeedbackGiven == nil {
		snapshot.FeedbackGiven = make(map[int64]bool)
	}
	return &snapshot
}

// Save writes the snapshot with a fresh timestamp. Failures are logged only.
func (store *SnapshotStore) Save(companyID string, snapshot Snapshot) {
	snapshot.Timestamp = store.now().UnixMilli()

	encoded, marshalErr := json.Marshal(snapshot)
	if marshalErr != nil {
		store.logger.Warn("snapshot_encode_failed", zap.String("company", companyID), zap.Error(marshalErr))
		return
	}

	if mkdirErr := os.MkdirAll(store.directory, snapshotDirMode); mkdirErr != nil {
		store.logger.Warn("snapshot_dir_failed", zap.String("company", companyID), zap.Error(mkdirErr))
		return
	}
	if writeErr := os.WriteFile(store.snapshotPath(companyID), encoded, snapshotFileMode); writeErr != nil {
		store.logger.Warn("snapshot_write_failed", zap.String("company", companyID), zap.Error(writeErr))
	}
}

// Clear removes the snapshot file; absent files are not an error.
func (store *SnapshotStore) Clear(companyID string) {
	if removeErr := os.Remove(store.snapshotPath(companyID)); removeErr != nil && !os.IsNotExist(removeErr) {
		store.logger.Warn("snapshot_remove_failed", zap.String("company", companyID), zap.Error(removeErr))
	}
}

// LoadConsent reports whether the consent sentinel exists for a tenant.
func (store *SnapshotStore) LoadConsent(companyID string) bool {
	rawSentinel, readErr := os.ReadFile(store.consentPath(companyID))
	if readErr != nil {
		return false
	}
	return string(rawSentinel) == consentSentinelContent
}

// SaveConsent records the consent sentinel for a tenant, best-effort.
func (store *SnapshotStore) SaveConsent(companyID string) {
	if mkdirErr := os.MkdirAll(store.directory, snapshotDirMode); mkdirErr != nil {
		store.logger.Warn("consent_dir_failed", zap.String("company", companyID), zap.Error(mkdirErr))
		return
	}
	if writeErr := os.WriteFile(store.consentPath(companyID), []byte(consentSentinelContent), snapshotFileMode); writeErr != nil {
		store.logger.Warn("consent_write_failed", zap.String("company", companyID), zap.Error(writeErr))
	}
}

// ClearConsent removes the consent sentinel; absent files are not an error.
func (store *SnapshotStore) ClearConsent(companyID string) {
	if removeErr := os.Remove(store.consentPath(companyID)); removeErr != nil && !os.IsNotExist(removeErr) {
		store.logger.Warn("consent_remove_failed", zap.String("company", companyID), zap.Error(removeErr))
	}
}

func (store *SnapshotStore) snapshotPath(companyID string) string {
	return filepath.Join(store.directory, "bobot_"+sanitizeTenantID(companyID)+".json")
}

func (store *SnapshotStore) consentPath(companyID string) string {
	return filepath.Join(store.directory, "bobot_consent_"+sanitizeTenantID(companyID))
}

func sanitizeTenantID(companyID string) string {
	sanitized := make([]rune, 0, len(companyID))
	for _, character := range companyID {
		switch {
		case character >= 'a' && character <= 'z',
			character >= 'A' && character <= 'Z',
			character >= '0' && character <= '9',
			character == '-', character == '_':
			sanitized = append(sanitized, character)
		default:
			sanitized = append(sanitized, '_')
		}
	}
	return string(sanitized)
}
