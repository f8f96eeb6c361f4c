package widget_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobotlabs/bobot/pkg/widget"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]any
}

func newRecordingServer(t *testing.T, status int, responseBody any, lastRequest *recordedRequest) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		lastRequest.Method = request.Method
		lastRequest.Path = request.URL.Path
		lastRequest.Query = map[string]string{}
		for key := range request.URL.Query() {
			lastRequest.Query[key] = request.URL.Query().Get(key)
		}
		lastRequest.Body = nil
		_ = json.NewDecoder(request.Body).Decode(&lastRequest.Body)

		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(status)
		_ = json.NewEncoder(writer).Encode(responseBody)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchConfigUsesCompanyScopedPath(t *testing.T) {
	var lastRequest recordedRequest
	server := newRecordingServer(t, http.StatusOK, widget.Config{CompanyID: "acme", PrimaryColor: "#445566"}, &lastRequest)

	client := widget.NewAPIClient(server.URL+"/", "acme", "", nil)
	configuration, fetchErr := client.FetchConfig(context.Background())
	require.NoError(t, fetchErr)
	require.Equal(t, "/widget/acme/config", lastRequest.Path)
	require.Equal(t, "#445566", configuration.PrimaryColor)
}

func TestFetchConfigPrefersWidgetKeyPath(t *testing.T) {
	var lastRequest recordedRequest
	server := newRecordingServer(t, http.StatusOK, widget.Config{CompanyID: "acme"}, &lastRequest)

	client := widget.NewAPIClient(server.URL, "acme", "wk_abc123", nil)
	_, fetchErr := client.FetchConfig(context.Background())
	require.NoError(t, fetchErr)
	require.Equal(t, "/widget/key/wk_abc123/config", lastRequest.Path)
}

func TestSendChatPostsQuestionPayload(t *testing.T) {
	var lastRequest recordedRequest
	confidence := 80
	server := newRecordingServer(t, http.StatusOK, widget.ChatResult{
		Answer:         "9 to 5.",
		HadAnswer:      true,
		Confidence:     &confidence,
		ConversationID: "conv-7",
	}, &lastRequest)

	client := widget.NewAPIClient(server.URL, "acme", "wk_abc123", nil)
	result, sendErr := client.SendChat(context.Background(), "Opening hours?", "w-100abc", "sv")
	require.NoError(t, sendErr)

	require.Equal(t, http.MethodPost, lastRequest.Method)
	require.Equal(t, "/chat/acme", lastRequest.Path)
	require.Equal(t, "Opening hours?", lastRequest.Body["question"])
	require.Equal(t, "w-100abc", lastRequest.Body["session_id"])
	require.Equal(t, "sv", lastRequest.Body["language"])
	require.Equal(t, "wk_abc123", lastRequest.Body["widget_key"])

	require.Equal(t, "9 to 5.", result.Answer)
	require.Equal(t, 80, *result.Confidence)
	require.Equal(t, "conv-7", result.ConversationID)
}

func TestSendFeedbackEncodesVoteAsQuery(t *testing.T) {
	var lastRequest recordedRequest
	server := newRecordingServer(t, http.StatusOK, map[string]bool{"ok": true}, &lastRequest)

	client := widget.NewAPIClient(server.URL, "acme", "", nil)
	require.NoError(t, client.SendFeedback(context.Background(), "w-100abc", false))

	require.Equal(t, http.MethodPost, lastRequest.Method)
	require.Equal(t, "/chat/acme/feedback", lastRequest.Path)
	require.Equal(t, "w-100abc", lastRequest.Query["session_id"])
	require.Equal(t, "false", lastRequest.Query["helpful"])
}

func TestNotifyConsentPostsDecision(t *testing.T) {
	var lastRequest recordedRequest
	server := newRecordingServer(t, http.StatusOK, map[string]bool{"ok": true}, &lastRequest)

	client := widget.NewAPIClient(server.URL, "acme", "", nil)
	require.NoError(t, client.NotifyConsent(context.Background(), "w-100abc", true))

	require.Equal(t, "/gdpr/acme/consent", lastRequest.Path)
	require.Equal(t, "w-100abc", lastRequest.Body["session_id"])
	require.Equal(t, true, lastRequest.Body["consent_given"])
}

func TestFetchMyDataDecodesRecordAndController(t *testing.T) {
	var lastRequest recordedRequest
	server := newRecordingServer(t, http.StatusOK, map[string]any{
		"data": map[string]any{
			"conversation_id": "conv-7",
			"consent_given":   true,
		},
		"data_controller": map[string]string{"name": "DPO", "email": "dpo@acme.example"},
	}, &lastRequest)

	client := widget.NewAPIClient(server.URL, "acme", "", nil)
	data, controller, _, fetchErr := client.FetchMyData(context.Background(), "w-100abc")
	require.NoError(t, fetchErr)

	require.Equal(t, http.MethodGet, lastRequest.Method)
	require.Equal(t, "/gdpr/acme/my-data", lastRequest.Path)
	require.Equal(t, "w-100abc", lastRequest.Query["session_id"])
	require.Equal(t, "conv-7", data.ConversationID)
	require.True(t, data.ConsentGiven)
	require.Equal(t, "dpo@acme.example", controller.Email)
}

func TestDeleteMyDataUsesDeleteMethod(t *testing.T) {
	var lastRequest recordedRequest
	server := newRecordingServer(t, http.StatusOK, map[string]string{"message": "deleted"}, &lastRequest)

	client := widget.NewAPIClient(server.URL, "acme", "", nil)
	require.NoError(t, client.DeleteMyData(context.Background(), "w-100abc"))

	require.Equal(t, http.MethodDelete, lastRequest.Method)
	require.Equal(t, "/gdpr/acme/my-data", lastRequest.Path)
}

func TestBackendErrorsSurfaceStatusAndMessage(t *testing.T) {
	var lastRequest recordedRequest
	server := newRecordingServer(t, http.StatusNotFound, map[string]string{"error": "unknown_company"}, &lastRequest)

	client := widget.NewAPIClient(server.URL, "acme", "", nil)
	_, fetchErr := client.FetchConfig(context.Background())
	require.Error(t, fetchErr)
	require.Contains(t, fetchErr.Error(), "404")
	require.Contains(t, fetchErr.Error(), "unknown_company")
}
