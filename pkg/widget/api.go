package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// Config is the tenant widget configuration served by the backend. All fields
// are read-only on the client; omitted fields fall back to built-in defaults.
type Config struct {
	CompanyID           string   `json:"company_id"`
	WidgetKey           string   `json:"widget_key"`
	PrimaryColor        string   `json:"primary_color"`
	FontFamily          string   `json:"font_family"`
	FontSize            int      `json:"font_size"`
	BorderRadius        int      `json:"border_radius"`
	Position            string   `json:"position"`
	RequireConsent      bool     `json:"require_consent"`
	ConsentText         string   `json:"consent_text"`
	WelcomeMessage      string   `json:"welcome_message"`
	FallbackMessage     string   `json:"fallback_message"`
	SuggestedQuestions  []string `json:"suggested_questions"`
	PrivacyPolicyURL    string   `json:"privacy_policy_url"`
	DataControllerName  string   `json:"data_controller_name"`
	DataControllerEmail string   `json:"data_controller_email"`
}

// Source is one FAQ entry cited for a bot answer.
type Source struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category,omitempty"`
}

// ChatResult is the backend's answer to one question. Confidence is nil when
// the backend reported none; callers substitute the default of 100.
type ChatResult struct {
	Answer         string   `json:"answer"`
	HadAnswer      bool     `json:"had_answer"`
	Confidence     *int     `json:"confidence"`
	SourcesDetail  []Source `json:"sources_detail"`
	ConversationID string   `json:"conversation_id"`
}

// DataController identifies the company contact responsible for stored data.
type DataController struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// MyDataMessage is one transcript entry returned by the data-access endpoint.
type MyDataMessage struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// MyData is the stored-data record returned by the data-access endpoint.
type MyData struct {
	ConversationID string          `json:"conversation_id"`
	ConsentGiven   bool            `json:"consent_given"`
	StartedAt      time.Time       `json:"started_at"`
	Messages       []MyDataMessage `json:"messages"`
}

type myDataResponse struct {
	Data           *MyData         `json:"data"`
	DataController *DataController `json:"data_controller"`
	Message        string          `json:"message"`
}

// APIClient talks to the widget backend for one tenant.
type APIClient struct {
	baseURL    string
	companyID  string
	widgetKey  string
	httpClient *http.Client
}

// NewAPIClient builds an APIClient. A nil httpClient gets a default with a
// request timeout; widgetKey may be empty, in which case configuration is
// resolved company-scoped.
func NewAPIClient(baseURL string, companyID string, widgetKey string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &APIClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		companyID:  strings.TrimSpace(companyID),
		widgetKey:  strings.TrimSpace(widgetKey),
		httpClient: httpClient,
	}
}

// FetchConfig loads the tenant configuration, widget-key-scoped when a key is set.
func (client *APIClient) FetchConfig(ctx context.Context) (*Config, error) {
	configPath := "/widget/" + url.PathEscape(client.companyID) + "/config"
	if client.widgetKey != "" {
		configPath = "/widget/key/" + url.PathEscape(client.widgetKey) + "/config"
	}

	responseBody, requestErr := client.doRequest(ctx, http.MethodGet, configPath, nil)
	if requestErr != nil {
		return nil, requestErr
	}

	var configuration Config
	if unmarshalErr := json.Unmarshal(responseBody, &configuration); unmarshalErr != nil {
		return nil, fmt.Errorf("widget: decode config: %w", unmarshalErr)
	}
	return &configuration, nil
}

type chatRequestBody struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
	WidgetKey string `json:"widget_key,omitempty"`
}

// SendChat posts one question and returns the backend's answer.
func (client *APIClient) SendChat(ctx context.Context, question string, sessionID string, language string) (ChatResult, error) {
	requestBody, _ := json.Marshal(chatRequestBody{
		Question:  question,
		SessionID: sessionID,
		Language:  language,
		WidgetKey: client.widgetKey,
	})

	responseBody, requestErr := client.doRequest(ctx, http.MethodPost, "/chat/"+url.PathEscape(client.companyID), requestBody)
	if requestErr != nil {
		return ChatResult{}, requestErr
	}

	var result ChatResult
	if unmarshalErr := json.Unmarshal(responseBody, &result); unmarshalErr != nil {
		return ChatResult{}, fmt.Errorf("widget: decode chat response: %w", unmarshalErr)
	}
	return result, nil
}

// SendFeedback posts a helpful / not-helpful vote for the session.
func (client *APIClient) SendFeedback(ctx context.Context, sessionID string, helpful bool) error {
	query := url.Values{}
	query.Set("session_id", sessionID)
	query.Set("helpful", strconv.FormatBool(helpful))

	_, requestErr := client.doRequest(ctx, http.MethodPost,
		"/chat/"+url.PathEscape(client.companyID)+"/feedback?"+query.Encode(), nil)
	return requestErr
}

type consentRequestBody struct {
	SessionID    string `json:"session_id"`
	ConsentGiven bool   `json:"consent_given"`
}

// NotifyConsent reports a consent decision for the session.
func (client *APIClient) NotifyConsent(ctx context.Context, sessionID string, consentGiven bool) error {
	requestBody, _ := json.Marshal(consentRequestBody{
		SessionID:    sessionID,
		ConsentGiven: consentGiven,
	})

	_, requestErr := client.doRequest(ctx, http.MethodPost,
		"/gdpr/"+url.PathEscape(client.companyID)+"/consent", requestBody)
	return requestErr
}

// FetchMyData retrieves everything the backend stores for the session.
func (client *APIClient) FetchMyData(ctx context.Context, sessionID string) (*MyData, *DataController, string, error) {
	query := url.Values{}
	query.Set("session_id", sessionID)

	responseBody, requestErr := client.doRequest(ctx, http.MethodGet,
		"/gdpr/"+url.PathEscape(client.companyID)+"/my-data?"+query.Encode(), nil)
	if requestErr != nil {
		return nil, nil, "", requestErr
	}

	var response myDataResponse
	if unmarshalErr := json.Unmarshal(responseBody, &response); unmarshalErr != nil {
		return nil, nil, "", fmt.Errorf("widget: decode my-data response: %w", unmarshalErr)
	}
	return response.Data, response.DataController, response.Message, nil
}

// DeleteMyData asks the backend to erase everything stored for the session.
func (client *APIClient) DeleteMyData(ctx context.Context, sessionID string) error {
	query := url.Values{}
	query.Set("session_id", sessionID)

	_, requestErr := client.doRequest(ctx, http.MethodDelete,
		"/gdpr/"+url.PathEscape(client.companyID)+"/my-data?"+query.Encode(), nil)
	return requestErr
}

func (client *APIClient) doRequest(ctx context.Context, method string, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	request, buildErr := http.NewRequestWithContext(ctx, method, client.baseURL+path, bodyReader)
	if buildErr != nil {
		return nil, buildErr
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, requestErr := client.httpClient.Do(request)
	if requestErr != nil {
		return nil, requestErr
	}
	defer response.Body.Close()

	responseBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return nil, readErr
	}

	if response.StatusCode >= 400 {
		var errorResponse struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(responseBody, &errorResponse)
		return nil, fmt.Errorf("widget: backend error %d: %s", response.StatusCode, errorResponse.Error)
	}

	return responseBody, nil
}
