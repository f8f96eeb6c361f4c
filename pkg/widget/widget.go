// Package widget implements the client-side conversation engine for the Bobot
// chat widget: tenant configuration resolution, session and transcript state,
// snapshot persistence with a freshness window, consent gating, and the GDPR
// self-service actions.
package widget

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Mode is the single mutually-exclusive interaction state of the widget.
type Mode int

const (
	// ModeBootstrapping is the initial state before configuration resolution.
	ModeBootstrapping Mode = iota
	// ModeConsentBlocked means the consent gate is active: sending is refused
	// until the visitor accepts.
	ModeConsentBlocked
	// ModeIdle means the widget accepts a new message.
	ModeIdle
	// ModeSending means a chat request is in flight.
	ModeSending
)

func (mode Mode) String() string {
	switch mode {
	case ModeBootstrapping:
		return "bootstrapping"
	case ModeConsentBlocked:
		return "consent-blocked"
	case ModeIdle:
		return "idle"
	case ModeSending:
		return "sending"
	default:
		return "unknown"
	}
}

var (
	// ErrMissingCompanyID indicates Options lacked a tenant identifier.
	ErrMissingCompanyID = errors.New("widget: missing company id")
	// ErrMissingAPIBaseURL indicates Options lacked a backend base URL.
	ErrMissingAPIBaseURL = errors.New("widget: missing api base url")
	// ErrNotBootstrapped indicates an operation ran before Bootstrap.
	ErrNotBootstrapped = errors.New("widget: not bootstrapped")
	// ErrEmptyMessage indicates Send was called with blank text.
	ErrEmptyMessage = errors.New("widget: empty message")
	// ErrSendInProgress indicates Send was called while a request was in flight.
	ErrSendInProgress = errors.New("widget: send already in progress")
	// ErrConsentRequired indicates the consent gate blocked the operation.
	ErrConsentRequired = errors.New("widget: consent required")
	// ErrUnknownMessage indicates feedback referenced no stored bot message.
	ErrUnknownMessage = errors.New("widget: unknown message id")
	// ErrClosed indicates the widget handle was already closed.
	ErrClosed = errors.New("widget: closed")
)

// Options configures a widget handle.
type Options struct {
	APIBaseURL string
	CompanyID  string
	WidgetKey  string
	StateDir   string
	Language   string
	DarkMode   bool
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// Widget is one embedded chat instance for one tenant. All exported methods are
// safe for use from a single goroutine; a handle is created per embed via New
// and released with Close.
type Widget struct {
	api          *APIClient
	store        *SnapshotStore
	logger       *zap.Logger
	companyID    string
	language     string
	darkMode     bool
	translations Translations
	now          func() time.Time

	mutex              sync.Mutex
	mode               Mode
	configuration      *Config
	messages           []Message
	sessionID          string
	conversationID     string
	feedbackGiven      map[int64]bool
	expandedSources    map[int64]bool
	hasUserSentMessage bool
	consentGiven       bool
	lastMessageID      int64
	closed             bool

	detached sync.WaitGroup
}

// New builds a widget handle. The handle owns no goroutines until feedback or
// consent notifications are dispatched; Close waits for those to settle.
func New(options Options) (*Widget, error) {
	companyID := strings.TrimSpace(options.CompanyID)
	if companyID == "" {
		return nil, ErrMissingCompanyID
	}
	if strings.TrimSpace(options.APIBaseURL) == "" {
		return nil, ErrMissingAPIBaseURL
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	stateDir := strings.TrimSpace(options.StateDir)
	if stateDir == "" {
		configDir, configDirErr := os.UserConfigDir()
		if configDirErr != nil {
			configDir = os.TempDir()
		}
		stateDir = filepath.Join(configDir, "bobot")
	}

	language := NormalizeLanguage(options.Language)

	return &Widget{
		api:             NewAPIClient(options.APIBaseURL, companyID, options.WidgetKey, options.HTTPClient),
		store:           NewSnapshotStore(stateDir, logger),
		logger:          logger,
		companyID:       companyID,
		language:        language,
		darkMode:        options.DarkMode,
		translations:    TranslationsFor(language),
		now:             time.Now,
		mode:            ModeBootstrapping,
		feedbackGiven:   make(map[int64]bool),
		expandedSources: make(map[int64]bool),
	}, nil
}

// Bootstrap resolves the tenant configuration and either restores a fresh
// persisted conversation or seeds a new one. Configuration failure is not an
// error: the widget degrades to built-in defaults and a localized greeting,
// and without a readable require_consent flag no gate is shown.
func (w *Widget) Bootstrap(ctx context.Context) {
	configuration, fetchErr := w.api.FetchConfig(ctx)
	if fetchErr != nil {
		w.logger.Warn("config_fetch_failed", zap.String("company", w.companyID), zap.Error(fetchErr))
		configuration = nil
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.configuration = configuration
	w.consentGiven = w.store.LoadConsent(w.companyID)

	if snapshot := w.store.Load(w.companyID); snapshot != nil && len(snapshot.Messages) > 1 {
		w.messages = snapshot.Messages
		w.sessionID = snapshot.SessionID
		w.conversationID = snapshot.ConversationID
		w.feedbackGiven = snapshot.FeedbackGiven
		w.hasUserSentMessage = true
		w.lastMessageID = snapshot.Messages[len(snapshot.Messages)-1].ID
	} else {
		w.seedConversationLocked()
	}

	w.mode = w.restingModeLocked()
}

// Send posts visitor text to the chat backend and appends the reply. A failed
// request is not an error to the caller: the visitor's message stays in the
// transcript and a single fallback bot message is appended instead of a reply.
// Guard violations (blank text, in-flight send, active consent gate) are errors
// and leave the transcript untouched.
func (w *Widget) Send(ctx context.Context, text string) (Message, error) {
	trimmedText := strings.TrimSpace(text)

	w.mutex.Lock()
	switch {
	case w.closed:
		w.mutex.Unlock()
		return Message{}, ErrClosed
	case w.mode == ModeBootstrapping:
		w.mutex.Unlock()
		return Message{}, ErrNotBootstrapped
	case trimmedText == "":
		w.mutex.Unlock()
		return Message{}, ErrEmptyMessage
	case w.mode == ModeSending:
		w.mutex.Unlock()
		return Message{}, ErrSendInProgress
	case w.mode == ModeConsentBlocked:
		w.mutex.Unlock()
		return Message{}, ErrConsentRequired
	}

	w.appendMessageLocked(Message{
		Type: MessageTypeUser,
		Text: trimmedText,
	})
	w.hasUserSentMessage = true
	w.mode = ModeSending
	sessionID := w.sessionID
	w.persistLocked()
	w.mutex.Unlock()

	result, sendErr := w.api.SendChat(ctx, trimmedText, sessionID, w.language)

	w.mutex.Lock()
	defer w.mutex.Unlock()
	defer func() { w.mode = ModeIdle }()

	if sendErr != nil {
		w.logger.Warn("chat_send_failed", zap.String("company", w.companyID), zap.Error(sendErr))
		fallbackMessage := w.appendMessageLocked(Message{
			Type:       MessageTypeBot,
			Text:       w.fallbackTextLocked(),
			Confidence: DefaultConfidence,
		})
		w.persistLocked()
		return fallbackMessage, nil
	}

	if strings.TrimSpace(result.ConversationID) != "" {
		w.conversationID = result.ConversationID
	}

	confidence := DefaultConfidence
	if result.Confidence != nil {
		confidence = *result.Confidence
	}
	sources := result.SourcesDetail
	if sources == nil {
		sources = []Source{}
	}

	botMessage := w.appendMessageLocked(Message{
		Type:       MessageTypeBot,
		Text:       result.Answer,
		HadAnswer:  result.HadAnswer,
		Confidence: confidence,
		Sources:    sources,
	})
	w.persistLocked()
	return botMessage, nil
}

// GiveFeedback records a helpful / not-helpful vote for a bot message. The vote
// is stored locally first; the backend notification is a detached best-effort
// task whose failure is only logged.
func (w *Widget) GiveFeedback(messageID int64, helpful bool) error {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		return ErrClosed
	}
	if !w.hasBotMessageLocked(messageID) {
		w.mutex.Unlock()
		return ErrUnknownMessage
	}
	w.feedbackGiven[messageID] = helpful
	sessionID := w.sessionID
	w.persistLocked()
	w.mutex.Unlock()

	w.detached.Add(1)
	go func() {
		defer w.detached.Done()
		notifyCtx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
		defer cancel()
		if notifyErr := w.api.SendFeedback(notifyCtx, sessionID, helpful); notifyErr != nil {
			w.logger.Warn("feedback_notify_failed", zap.String("company", w.companyID), zap.Error(notifyErr))
		}
	}()
	return nil
}

// FeedbackFor reports the stored vote for a message id.
func (w *Widget) FeedbackFor(messageID int64) (bool, bool) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	helpful, voted := w.feedbackGiven[messageID]
	return helpful, voted
}

// NewConversation discards the transcript and persisted snapshot, reseeds the
// greeting, and regenerates the session identity. Consent survives.
func (w *Widget) NewConversation() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return
	}

	w.store.Clear(w.companyID)
	w.seedConversationLocked()
	w.mode = w.restingModeLocked()
}

// ToggleSources flips the expansion state for one message's sources and
// reports the new state. Expansion is independent per message id.
func (w *Widget) ToggleSources(messageID int64) bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.expandedSources[messageID] = !w.expandedSources[messageID]
	return w.expandedSources[messageID]
}

// SourcesExpanded reports the expansion state for one message id.
func (w *Widget) SourcesExpanded(messageID int64) bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.expandedSources[messageID]
}

// AcceptConsent records consent locally and notifies the backend best-effort.
// The local sentinel is set regardless of the notification outcome.
func (w *Widget) AcceptConsent() {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		return
	}
	w.consentGiven = true
	w.store.SaveConsent(w.companyID)
	sessionID := w.sessionID
	if w.mode == ModeConsentBlocked {
		w.mode = ModeIdle
	}
	w.mutex.Unlock()

	w.detached.Add(1)
	go func() {
		defer w.detached.Done()
		notifyCtx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
		defer cancel()
		if notifyErr := w.api.NotifyConsent(notifyCtx, sessionID, true); notifyErr != nil {
			w.logger.Warn("consent_notify_failed", zap.String("company", w.companyID), zap.Error(notifyErr))
		}
	}()
}

// DeclineConsent records nothing, so the gate reappears on the next bootstrap.
func (w *Widget) DeclineConsent() {}

// RevokeConsent withdraws consent: the backend is notified best-effort and the
// local sentinel is always cleared afterwards.
func (w *Widget) RevokeConsent(ctx context.Context) {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		return
	}
	sessionID := w.sessionID
	w.mutex.Unlock()

	if notifyErr := w.api.NotifyConsent(ctx, sessionID, false); notifyErr != nil {
		w.logger.Warn("consent_revoke_notify_failed", zap.String("company", w.companyID), zap.Error(notifyErr))
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.consentGiven = false
	w.store.ClearConsent(w.companyID)
	w.mode = w.restingModeLocked()
}

// MyDataView is the outcome of a data-access request.
type MyDataView struct {
	Found          bool
	Data           *MyData
	DataController *DataController
	Notice         string
}

// ViewMyData fetches everything stored for this session. Failures and empty
// results both surface as a localized notice; conversation state never changes.
func (w *Widget) ViewMyData(ctx context.Context) MyDataView {
	w.mutex.Lock()
	sessionID := w.sessionID
	w.mutex.Unlock()

	data, controller, _, fetchErr := w.api.FetchMyData(ctx, sessionID)
	if fetchErr != nil {
		w.logger.Warn("my_data_fetch_failed", zap.String("company", w.companyID), zap.Error(fetchErr))
		return MyDataView{Notice: w.translations.NoDataFound}
	}
	if data == nil {
		return MyDataView{DataController: controller, Notice: w.translations.NoDataFound}
	}
	return MyDataView{Found: true, Data: data, DataController: controller}
}

// DeleteMyData erases the session server-side, then resets all local state:
// snapshot, consent sentinel, feedback, transcript, and session identity. On
// failure nothing local changes so the visitor can retry.
func (w *Widget) DeleteMyData(ctx context.Context) error {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		return ErrClosed
	}
	sessionID := w.sessionID
	w.mutex.Unlock()

	if deleteErr := w.api.DeleteMyData(ctx, sessionID); deleteErr != nil {
		w.logger.Warn("my_data_delete_failed", zap.String("company", w.companyID), zap.Error(deleteErr))
		return fmt.Errorf("%s: %w", w.translations.DeleteError, deleteErr)
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.store.Clear(w.companyID)
	w.store.ClearConsent(w.companyID)
	w.consentGiven = false
	w.seedConversationLocked()
	w.mode = w.restingModeLocked()
	return nil
}

// Close waits for detached notifications to settle and invalidates the handle.
func (w *Widget) Close() {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		return
	}
	w.closed = true
	w.mutex.Unlock()
	w.detached.Wait()
}

// Messages returns a copy of the transcript in order.
func (w *Widget) Messages() []Message {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	copied := make([]Message, len(w.messages))
	copy(copied, w.messages)
	return copied
}

// SessionID returns the current client-generated session identifier.
func (w *Widget) SessionID() string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.sessionID
}

// ConversationID returns the backend-assigned conversation identifier, empty
// until the backend establishes one.
func (w *Widget) ConversationID() string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conversationID
}

// Mode returns the current interaction state.
func (w *Widget) Mode() Mode {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.mode
}

// Configuration returns the loaded tenant configuration, nil when the fetch failed.
func (w *Widget) Configuration() *Config {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.configuration
}

// Theme resolves the effective style values for the current mode and language.
func (w *Widget) Theme() Theme {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return ResolveTheme(w.darkMode, w.language, w.configuration)
}

// SetDarkMode switches the palette used by Theme.
func (w *Widget) SetDarkMode(darkMode bool) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.darkMode = darkMode
}

// Translations returns the interface strings for the detected language.
func (w *Widget) Translations() Translations {
	return w.translations
}

// Language returns the normalized detected language code.
func (w *Widget) Language() string {
	return w.language
}

// SuggestedQuestionsVisible reports whether suggested questions should show:
// only before the visitor's first message and only when configuration carries any.
func (w *Widget) SuggestedQuestionsVisible() bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return !w.hasUserSentMessage && w.configuration != nil && len(w.configuration.SuggestedQuestions) > 0
}

// SuggestedQuestions returns the configured suggested questions.
func (w *Widget) SuggestedQuestions() []string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.configuration == nil {
		return nil
	}
	return w.configuration.SuggestedQuestions
}

func (w *Widget) seedConversationLocked() {
	greetingText := w.translations.Greeting
	if w.configuration != nil && strings.TrimSpace(w.configuration.WelcomeMessage) != "" {
		greetingText = w.configuration.WelcomeMessage
	}

	w.messages = nil
	w.conversationID = ""
	w.feedbackGiven = make(map[int64]bool)
	w.expandedSources = make(map[int64]bool)
	w.hasUserSentMessage = false
	w.sessionID = newSessionID(w.now())
	w.appendMessageLocked(Message{
		Type:       MessageTypeBot,
		Text:       greetingText,
		HadAnswer:  true,
		Confidence: DefaultConfidence,
	})
}

func (w *Widget) appendMessageLocked(message Message) Message {
	nowMillis := w.now().UnixMilli()
	messageID := nowMillis
	if messageID <= w.lastMessageID {
		messageID = w.lastMessageID + 1
	}
	w.lastMessageID = messageID

	message.ID = messageID
	message.Time = nowMillis
	w.messages = append(w.messages, message)
	return message
}

// persistLocked writes the snapshot when the conversation is non-trivial and
// configuration has loaded. Persistence runs inside the state transition that
// warranted it, so there is no window between the two.
func (w *Widget) persistLocked() {
	if len(w.messages) <= 1 || w.configuration == nil {
		return
	}
	w.store.Save(w.companyID, Snapshot{
		Messages:       w.messages,
		SessionID:      w.sessionID,
		ConversationID: w.conversationID,
		FeedbackGiven:  w.feedbackGiven,
	})
}

func (w *Widget) restingModeLocked() Mode {
	if w.configuration != nil && w.configuration.RequireConsent && !w.consentGiven {
		return ModeConsentBlocked
	}
	return ModeIdle
}

func (w *Widget) fallbackTextLocked() string {
	if w.configuration != nil && strings.TrimSpace(w.configuration.FallbackMessage) != "" {
		return w.configuration.FallbackMessage
	}
	return w.translations.Fallback
}

func (w *Widget) hasBotMessageLocked(messageID int64) bool {
	for _, storedMessage := range w.messages {
		if storedMessage.ID == messageID && storedMessage.Type == MessageTypeBot {
			return true
		}
	}
	return false
}

// DefaultConfidence is assumed for bot messages when the backend reports none.
const DefaultConfidence = 100

func newSessionID(now time.Time) string {
	return "w-" + strconv.FormatInt(now.UnixMilli(), 10) + strconv.FormatInt(rand.Int63n(46656), 36)
}
