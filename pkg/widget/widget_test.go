package widget_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobotlabs/bobot/pkg/widget"
)

type consentPayload struct {
	SessionID    string `json:"session_id"`
	ConsentGiven bool   `json:"consent_given"`
}

type myDataBody struct {
	Data           *widget.MyData         `json:"data"`
	DataController *widget.DataController `json:"data_controller"`
	Message        string                 `json:"message"`
}

// backendFixture fakes the widget backend with adjustable responses and
// request counters so detached notifications can be asserted after Close.
type backendFixture struct {
	Server *httptest.Server

	mutex             sync.Mutex
	ConfigStatus      int
	Config            widget.Config
	ChatStatus        int
	ChatResult        widget.ChatResult
	ChatRequests      int
	MyDataStatus      int
	MyData            myDataBody
	DeleteStatus      int
	DeleteRequests    int
	FeedbackRequests  int
	LastFeedbackQuery map[string]string
	ConsentRequests   int
	LastConsent       consentPayload
}

func newBackendFixture(t *testing.T) *backendFixture {
	fixture := &backendFixture{
		ConfigStatus: http.StatusOK,
		ChatStatus:   http.StatusOK,
		MyDataStatus: http.StatusOK,
		DeleteStatus: http.StatusOK,
	}
	fixture.Server = httptest.NewServer(http.HandlerFunc(fixture.serve))
	t.Cleanup(fixture.Server.Close)
	return fixture
}

func (fixture *backendFixture) serve(writer http.ResponseWriter, request *http.Request) {
	fixture.mutex.Lock()
	defer fixture.mutex.Unlock()

	switch {
	case strings.HasSuffix(request.URL.Path, "/config"):
		writeJSON(writer, fixture.ConfigStatus, fixture.Config)
	case strings.HasSuffix(request.URL.Path, "/feedback"):
		fixture.FeedbackRequests++
		fixture.LastFeedbackQuery = map[string]string{
			"session_id": request.URL.Query().Get("session_id"),
			"helpful":    request.URL.Query().Get("helpful"),
		}
		writeJSON(writer, http.StatusOK, map[string]bool{"ok": true})
	case strings.HasSuffix(request.URL.Path, "/consent"):
		fixture.ConsentRequests++
		_ = json.NewDecoder(request.Body).Decode(&fixture.LastConsent)
		writeJSON(writer, http.StatusOK, map[string]bool{"ok": true})
	case strings.HasSuffix(request.URL.Path, "/my-data") && request.Method == http.MethodDelete:
		fixture.DeleteRequests++
		writeJSON(writer, fixture.DeleteStatus, map[string]string{"message": "deleted"})
	case strings.HasSuffix(request.URL.Path, "/my-data"):
		writeJSON(writer, fixture.MyDataStatus, fixture.MyData)
	case strings.HasPrefix(request.URL.Path, "/chat/"):
		fixture.ChatRequests++
		writeJSON(writer, fixture.ChatStatus, fixture.ChatResult)
	default:
		writer.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(body)
}

func (fixture *backendFixture) setChatResult(result widget.ChatResult) {
	fixture.mutex.Lock()
	defer fixture.mutex.Unlock()
	fixture.ChatResult = result
}

func (fixture *backendFixture) setChatStatus(status int) {
	fixture.mutex.Lock()
	defer fixture.mutex.Unlock()
	fixture.ChatStatus = status
}

func defaultConfig() widget.Config {
	return widget.Config{
		CompanyID:          "acme",
		WidgetKey:          "wk_acme",
		PrimaryColor:       "#445566",
		WelcomeMessage:     "Welcome to Acme support!",
		FallbackMessage:    "We could not reach the answer service.",
		SuggestedQuestions: []string{"Opening hours?", "Returns?"},
	}
}

func openHandle(t *testing.T, fixture *backendFixture, stateDirectory string) *widget.Widget {
	t.Helper()

	handle, buildErr := widget.New(widget.Options{
		APIBaseURL: fixture.Server.URL,
		CompanyID:  "acme",
		StateDir:   stateDirectory,
		Language:   "en",
		Logger:     zap.NewNop(),
	})
	require.NoError(t, buildErr)
	handle.Bootstrap(context.Background())
	return handle
}

func TestNewValidatesOptions(t *testing.T) {
	_, missingCompanyErr := widget.New(widget.Options{APIBaseURL: "http://localhost"})
	require.ErrorIs(t, missingCompanyErr, widget.ErrMissingCompanyID)

	_, missingBaseURLErr := widget.New(widget.Options{CompanyID: "acme"})
	require.ErrorIs(t, missingBaseURLErr, widget.ErrMissingAPIBaseURL)
}

func TestBootstrapSeedsConfiguredGreeting(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()

	handle := openHandle(t, fixture, t.TempDir())
	defer handle.Close()

	require.Equal(t, widget.ModeIdle, handle.Mode())

	transcript := handle.Messages()
	require.Len(t, transcript, 1)
	require.Equal(t, widget.MessageTypeBot, transcript[0].Type)
	require.Equal(t, "Welcome to Acme support!", transcript[0].Text)
	require.True(t, transcript[0].HadAnswer)
	require.Equal(t, widget.DefaultConfidence, transcript[0].Confidence)

	require.True(t, strings.HasPrefix(handle.SessionID(), "w-"))
	require.Greater(t, len(handle.SessionID()), len("w-")+10)
	require.True(t, handle.SuggestedQuestionsVisible())
	require.Equal(t, []string{"Opening hours?", "Returns?"}, handle.SuggestedQuestions())
}

func TestBootstrapDegradesWhenConfigFetchFails(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.ConfigStatus = http.StatusInternalServerError

	handle := openHandle(t, fixture, t.TempDir())
	defer handle.Close()

	require.Nil(t, handle.Configuration())
	require.Equal(t, widget.ModeIdle, handle.Mode())
	require.False(t, handle.SuggestedQuestionsVisible())

	transcript := handle.Messages()
	require.Len(t, transcript, 1)
	require.Equal(t, handle.Translations().Greeting, transcript[0].Text)

	resolvedTheme := handle.Theme()
	require.Equal(t, "#2563eb", resolvedTheme.PrimaryColor)
	require.Equal(t, "right", resolvedTheme.Position)
}

func TestSendAppendsQuestionAndAnswer(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()
	confidence := 72
	fixture.ChatResult = widget.ChatResult{
		Answer:         "We are open 9 to 5.",
		HadAnswer:      true,
		Confidence:     &confidence,
		SourcesDetail:  []widget.Source{{Question: "Opening hours?", Answer: "9 to 5."}},
		ConversationID: "conv-123",
	}

	handle := openHandle(t, fixture, t.TempDir())
	defer handle.Close()

	botMessage, sendErr := handle.Send(context.Background(), "  When are you open?  ")
	require.NoError(t, sendErr)
	require.Equal(t, "We are open 9 to 5.", botMessage.Text)
	require.True(t, botMessage.HadAnswer)
	require.Equal(t, 72, botMessage.Confidence)
	require.Len(t, botMessage.Sources, 1)

	require.Equal(t, "conv-123", handle.ConversationID())
	require.Equal(t, widget.ModeIdle, handle.Mode())
	require.False(t, handle.SuggestedQuestionsVisible())

	transcript := handle.Messages()
	require.Len(t, transcript, 3)
	require.Equal(t, widget.MessageTypeUser, transcript[1].Type)
	require.Equal(t, "When are you open?", transcript[1].Text)
	require.Equal(t, widget.MessageTypeBot, transcript[2].Type)
	require.Greater(t, transcript[2].ID, transcript[1].ID)
}

func TestSendDefaultsMissingConfidence(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()
	fixture.ChatResult = widget.ChatResult{Answer: "Sure.", HadAnswer: true}

	handle := openHandle(t, fixture, t.TempDir())
	defer handle.Close()

	botMessage, sendErr := handle.Send(context.Background(), "Returns?")
	require.NoError(t, sendErr)
	require.Equal(t, widget.DefaultConfidence, botMessage.Confidence)
}

func TestSendGuards(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()

	notBootstrapped, buildErr := widget.New(widget.Options{
		APIBaseURL: fixture.Server.URL,
		CompanyID:  "acme",
		StateDir:   t.TempDir(),
	})
	require.NoError(t, buildErr)
	_, earlyErr := notBootstrapped.Send(context.Background(), "hello")
	require.ErrorIs(t, earlyErr, widget.ErrNotBootstrapped)
	notBootstrapped.Close()

	handle := openHandle(t, fixture, t.TempDir())
	_, emptyErr := handle.Send(context.Background(), "   ")
	require.ErrorIs(t, emptyErr, widget.ErrEmptyMessage)
	require.Len(t, handle.Messages(), 1)

	fixture.mutex.Lock()
	require.Zero(t, fixture.ChatRequests)
	fixture.mutex.Unlock()

	handle.Close()
	_, closedErr := handle.Send(context.Background(), "hello")
	require.ErrorIs(t, closedErr, widget.ErrClosed)
}

func TestSequentialSendsAccumulateInOrder(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()
	fixture.ChatResult = widget.ChatResult{Answer: "9 to 5.", HadAnswer: true, ConversationID: "conv-first"}

	handle := openHandle(t, fixture, t.TempDir())
	defer handle.Close()

	_, firstErr := handle.Send(context.Background(), "Opening hours?")
	require.NoError(t, firstErr)
	require.Equal(t, "conv-first", handle.ConversationID())

	fixture.setChatResult(widget.ChatResult{Answer: "Yes, worldwide.", HadAnswer: true, ConversationID: "conv-second"})
	_, secondErr := handle.Send(context.Background(), "Do you ship?")
	require.NoError(t, secondErr)
	require.Equal(t, "conv-second", handle.ConversationID())

	transcript := handle.Messages()
	require.Len(t, transcript, 5)
	require.Equal(t, widget.MessageTypeBot, transcript[0].Type)
	require.Equal(t, "Opening hours?", transcript[1].Text)
	require.Equal(t, "9 to 5.", transcript[2].Text)
	require.Equal(t, "Do you ship?", transcript[3].Text)
	require.Equal(t, "Yes, worldwide.", transcript[4].Text)
	for messageIndex := 1; messageIndex < len(transcript); messageIndex++ {
		require.Greater(t, transcript[messageIndex].ID, transcript[messageIndex-1].ID)
	}
}

func TestSendFailureAppendsFallback(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()
	fixture.setChatStatus(http.StatusInternalServerError)

	handle := openHandle(t, fixture, t.TempDir())
	defer handle.Close()

	fallbackMessage, sendErr := handle.Send(context.Background(), "Anyone there?")
	require.NoError(t, sendErr)
	require.Equal(t, "We could not reach the answer service.", fallbackMessage.Text)
	require.False(t, fallbackMessage.HadAnswer)

	transcript := handle.Messages()
	require.Len(t, transcript, 3)
	require.Equal(t, "Anyone there?", transcript[1].Text)
	require.Equal(t, widget.ModeIdle, handle.Mode())
	require.Empty(t, handle.ConversationID())
}

func TestSendFailureUsesLocalizedFallbackWithoutConfig(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.ConfigStatus = http.StatusInternalServerError
	fixture.setChatStatus(http.StatusBadGateway)

	handle := openHandle(t, fixture, t.TempDir())
	defer handle.Close()

	fallbackMessage, sendErr := handle.Send(context.Background(), "Hello?")
	require.NoError(t, sendErr)
	require.Equal(t, handle.Translations().Fallback, fallbackMessage.Text)
}

func TestConversationRestoresAcrossHandles(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()
	fixture.ChatResult = widget.ChatResult{
		Answer:         "9 to 5.",
		HadAnswer:      true,
		ConversationID: "conv-55",
		SourcesDetail:  []widget.Source{{Question: "Opening hours?", Answer: "9 to 5."}},
	}

	stateDirectory := t.TempDir()

	firstHandle := openHandle(t, fixture, stateDirectory)
	_, sendErr := firstHandle.Send(context.Background(), "Opening hours?")
	require.NoError(t, sendErr)
	firstSessionID := firstHandle.SessionID()
	firstTranscript := firstHandle.Messages()
	firstHandle.Close()

	secondHandle := openHandle(t, fixture, stateDirectory)
	defer secondHandle.Close()

	require.Equal(t, firstSessionID, secondHandle.SessionID())
	require.Equal(t, "conv-55", secondHandle.ConversationID())
	require.Equal(t, firstTranscript, secondHandle.Messages())
	require.False(t, secondHandle.SuggestedQuestionsVisible())
}

func TestGreetingOnlyConversationIsNotPersisted(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()

	stateDirectory := t.TempDir()

	firstHandle := openHandle(t, fixture, stateDirectory)
	firstSessionID := firstHandle.SessionID()
	firstHandle.Close()

	secondHandle := openHandle(t, fixture, stateDirectory)
	defer secondHandle.Close()

	require.NotEqual(t, firstSessionID, secondHandle.SessionID())
	require.Len(t, secondHandle.Messages(), 1)
}

func TestNewConversationResetsTranscriptAndSession(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()
	fixture.ChatResult = widget.ChatResult{Answer: "Yes.", HadAnswer: true, ConversationID: "conv-9"}

	stateDirectory := t.TempDir()
	handle := openHandle(t, fixture, stateDirectory)
	defer handle.Close()

	_, sendErr := handle.Send(context.Background(), "Do you ship?")
	require.NoError(t, sendErr)
	previousSessionID := handle.SessionID()

	handle.NewConversation()

	require.NotEqual(t, previousSessionID, handle.SessionID())
	require.Empty(t, handle.ConversationID())
	require.Len(t, handle.Messages(), 1)
	require.True(t, handle.SuggestedQuestionsVisible())
	require.Equal(t, widget.ModeIdle, handle.Mode())

	restored := openHandle(t, fixture, stateDirectory)
	defer restored.Close()
	require.Len(t, restored.Messages(), 1)
}

func TestConsentGateBlocksSendingUntilAccepted(t *testing.T) {
	fixture := newBackendFixture(t)
	configuration := defaultConfig()
	configuration.RequireConsent = true
	fixture.Config = configuration

	handle := openHandle(t, fixture, t.TempDir())

	require.Equal(t, widget.ModeConsentBlocked, handle.Mode())
	_, blockedErr := handle.Send(context.Background(), "hello")
	require.ErrorIs(t, blockedErr, widget.ErrConsentRequired)

	handle.AcceptConsent()
	require.Equal(t, widget.ModeIdle, handle.Mode())

	fixture.setChatResult(widget.ChatResult{Answer: "Hi!", HadAnswer: true})
	_, sendErr := handle.Send(context.Background(), "hello")
	require.NoError(t, sendErr)

	sessionID := handle.SessionID()
	handle.Close()

	fixture.mutex.Lock()
	defer fixture.mutex.Unlock()
	require.Equal(t, 1, fixture.ConsentRequests)
	require.Equal(t, sessionID, fixture.LastConsent.SessionID)
	require.True(t, fixture.LastConsent.ConsentGiven)
}

func TestConsentSurvivesAcrossHandles(t *testing.T) {
	fixture := newBackendFixture(t)
	configuration := defaultConfig()
	configuration.RequireConsent = true
	fixture.Config = configuration

	stateDirectory := t.TempDir()

	firstHandle := openHandle(t, fixture, stateDirectory)
	firstHandle.AcceptConsent()
	firstHandle.Close()

	secondHandle := openHandle(t, fixture, stateDirectory)
	defer secondHandle.Close()
	require.Equal(t, widget.ModeIdle, secondHandle.Mode())
}

func TestDeclineConsentRecordsNothing(t *testing.T) {
	fixture := newBackendFixture(t)
	configuration := defaultConfig()
	configuration.RequireConsent = true
	fixture.Config = configuration

	stateDirectory := t.TempDir()

	firstHandle := openHandle(t, fixture, stateDirectory)
	firstHandle.DeclineConsent()
	require.Equal(t, widget.ModeConsentBlocked, firstHandle.Mode())
	firstHandle.Close()

	secondHandle := openHandle(t, fixture, stateDirectory)
	defer secondHandle.Close()
	require.Equal(t, widget.ModeConsentBlocked, secondHandle.Mode())
}

func TestRevokeConsentReactivatesGate(t *testing.T) {
	fixture := newBackendFixture(t)
	configuration := defaultConfig()
	configuration.RequireConsent = true
	fixture.Config = configuration

	stateDirectory := t.TempDir()
	handle := openHandle(t, fixture, stateDirectory)
	handle.AcceptConsent()
	require.Equal(t, widget.ModeIdle, handle.Mode())
	require.Eventually(t, func() bool {
		fixture.mutex.Lock()
		defer fixture.mutex.Unlock()
		return fixture.ConsentRequests == 1
	}, time.Second, 10*time.Millisecond)

	handle.RevokeConsent(context.Background())
	require.Equal(t, widget.ModeConsentBlocked, handle.Mode())
	handle.Close()

	fixture.mutex.Lock()
	require.Equal(t, 2, fixture.ConsentRequests)
	require.False(t, fixture.LastConsent.ConsentGiven)
	fixture.mutex.Unlock()

	nextHandle := openHandle(t, fixture, stateDirectory)
	defer nextHandle.Close()
	require.Equal(t, widget.ModeConsentBlocked, nextHandle.Mode())
}

func TestGiveFeedbackStoresVoteAndNotifiesBackend(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()
	fixture.ChatResult = widget.ChatResult{Answer: "Yes.", HadAnswer: true}

	handle := openHandle(t, fixture, t.TempDir())

	botMessage, sendErr := handle.Send(context.Background(), "Do you ship?")
	require.NoError(t, sendErr)

	require.NoError(t, handle.GiveFeedback(botMessage.ID, true))
	helpful, voted := handle.FeedbackFor(botMessage.ID)
	require.True(t, voted)
	require.True(t, helpful)

	sessionID := handle.SessionID()
	handle.Close()

	fixture.mutex.Lock()
	defer fixture.mutex.Unlock()
	require.Equal(t, 1, fixture.FeedbackRequests)
	require.Equal(t, sessionID, fixture.LastFeedbackQuery["session_id"])
	require.Equal(t, "true", fixture.LastFeedbackQuery["helpful"])
}

func TestGiveFeedbackRejectsNonBotMessages(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()
	fixture.ChatResult = widget.ChatResult{Answer: "Yes.", HadAnswer: true}

	handle := openHandle(t, fixture, t.TempDir())
	defer handle.Close()

	_, sendErr := handle.Send(context.Background(), "Do you ship?")
	require.NoError(t, sendErr)

	transcript := handle.Messages()
	userMessage := transcript[1]
	require.ErrorIs(t, handle.GiveFeedback(userMessage.ID, true), widget.ErrUnknownMessage)
	require.ErrorIs(t, handle.GiveFeedback(99999999, false), widget.ErrUnknownMessage)
}

func TestToggleSourcesIsPerMessage(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()

	handle := openHandle(t, fixture, t.TempDir())
	defer handle.Close()

	require.False(t, handle.SourcesExpanded(10))
	require.True(t, handle.ToggleSources(10))
	require.True(t, handle.SourcesExpanded(10))
	require.False(t, handle.SourcesExpanded(11))
	require.False(t, handle.ToggleSources(10))
}

func TestViewMyDataReturnsStoredRecord(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()
	fixture.MyData = myDataBody{
		Data: &widget.MyData{
			ConversationID: "conv-1",
			ConsentGiven:   true,
			StartedAt:      time.Now().UTC(),
			Messages:       []widget.MyDataMessage{{Role: "user", Text: "hi"}},
		},
		DataController: &widget.DataController{Name: "DPO", Email: "dpo@acme.example"},
	}

	handle := openHandle(t, fixture, t.TempDir())
	defer handle.Close()

	view := handle.ViewMyData(context.Background())
	require.True(t, view.Found)
	require.Equal(t, "conv-1", view.Data.ConversationID)
	require.Equal(t, "DPO", view.DataController.Name)
	require.Empty(t, view.Notice)
}

func TestViewMyDataReportsNoticeWhenNothingStored(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()
	fixture.MyData = myDataBody{Message: "no_data_found"}

	handle := openHandle(t, fixture, t.TempDir())
	defer handle.Close()

	emptyView := handle.ViewMyData(context.Background())
	require.False(t, emptyView.Found)
	require.Equal(t, handle.Translations().NoDataFound, emptyView.Notice)

	fixture.mutex.Lock()
	fixture.MyDataStatus = http.StatusInternalServerError
	fixture.mutex.Unlock()

	failedView := handle.ViewMyData(context.Background())
	require.False(t, failedView.Found)
	require.Equal(t, handle.Translations().NoDataFound, failedView.Notice)
	require.Len(t, handle.Messages(), 1)
}

func TestDeleteMyDataResetsLocalState(t *testing.T) {
	fixture := newBackendFixture(t)
	configuration := defaultConfig()
	configuration.RequireConsent = true
	fixture.Config = configuration
	fixture.ChatResult = widget.ChatResult{Answer: "Sure.", HadAnswer: true}

	stateDirectory := t.TempDir()
	handle := openHandle(t, fixture, stateDirectory)
	defer handle.Close()

	handle.AcceptConsent()
	_, sendErr := handle.Send(context.Background(), "Forget me please")
	require.NoError(t, sendErr)
	previousSessionID := handle.SessionID()

	require.NoError(t, handle.DeleteMyData(context.Background()))

	require.NotEqual(t, previousSessionID, handle.SessionID())
	require.Len(t, handle.Messages(), 1)
	require.Equal(t, widget.ModeConsentBlocked, handle.Mode())

	restored := openHandle(t, fixture, stateDirectory)
	defer restored.Close()
	require.Len(t, restored.Messages(), 1)
	require.Equal(t, widget.ModeConsentBlocked, restored.Mode())
}

func TestDeleteMyDataFailureLeavesStateUntouched(t *testing.T) {
	fixture := newBackendFixture(t)
	fixture.Config = defaultConfig()
	fixture.ChatResult = widget.ChatResult{Answer: "Sure.", HadAnswer: true}

	handle := openHandle(t, fixture, t.TempDir())
	defer handle.Close()

	_, sendErr := handle.Send(context.Background(), "Forget me please")
	require.NoError(t, sendErr)
	previousSessionID := handle.SessionID()
	previousTranscript := handle.Messages()

	fixture.mutex.Lock()
	fixture.DeleteStatus = http.StatusInternalServerError
	fixture.mutex.Unlock()

	deleteErr := handle.DeleteMyData(context.Background())
	require.Error(t, deleteErr)
	require.Contains(t, deleteErr.Error(), handle.Translations().DeleteError)

	require.Equal(t, previousSessionID, handle.SessionID())
	require.Equal(t, previousTranscript, handle.Messages())
}

func TestModeStrings(t *testing.T) {
	require.Equal(t, "bootstrapping", widget.ModeBootstrapping.String())
	require.Equal(t, "consent-blocked", widget.ModeConsentBlocked.String())
	require.Equal(t, "idle", widget.ModeIdle.String())
	require.Equal(t, "sending", widget.ModeSending.String())
}
