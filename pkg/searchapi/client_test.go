package searchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	c, err := NewClient("")
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, c.BaseURL())

	_, err = NewClient("ftp://example.com")
	require.Error(t, err)

	_, err = NewClient("http://")
	require.Error(t, err)

	c, err = NewClient("https://api.example.com/v1/")
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/v1/start/", c.endpoint("/start/", nil))
}

func TestClient_StartSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/start/", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "best hiking trails", body["query"])
		require.Equal(t, "openrouter", body["LLM_PROVIDER"])
		require.Equal(t, "sk-1", body["LLM_API_KEY"])
		require.Equal(t, "", body["LLM_BASE_URL"])
		require.Equal(t, "m", body["LLM_MODEL"])

		_, _ = w.Write([]byte(`{"session_id":"s1","clarification":[{"question_id":"q1","text":"Where?","choices":["Alps","Rockies"]}]}`))
	})

	resp, err := c.StartSearch(context.Background(), StartRequest{
		Query:    "best hiking trails",
		Provider: "openrouter",
		APIKey:   "sk-1",
		Model:    "m",
	})
	require.NoError(t, err)
	require.Equal(t, "s1", resp.SessionID)
	require.Len(t, resp.Clarification, 1)
	require.Equal(t, []string{"Alps", "Rockies"}, resp.Clarification[0].Choices)
}

func TestClient_StartSearch_Signal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"signal":"no_related_questions"}`))
	})

	_, err := c.StartSearch(context.Background(), StartRequest{Query: "q"})
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.True(t, apiErr.HasSignal(SignalNoRelatedQuestions))
}

func TestClient_StartSearch_SignalOn200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"signal":"no_related_questions"}`))
	})

	_, err := c.StartSearch(context.Background(), StartRequest{Query: "q"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusOK, apiErr.StatusCode)
	require.Equal(t, SignalNoRelatedQuestions, apiErr.Signal)
}

func TestClient_ValidationDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","query"],"msg":"field required"},{"loc":["body","LLM_MODEL"],"msg":"field required"}]}`))
	})

	_, err := c.StartSearch(context.Background(), StartRequest{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Len(t, apiErr.Detail, 2)
	require.Contains(t, apiErr.Error(), "2 validation errors")
}

func TestClient_SubmitAnswers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/", r.URL.Path)
		var req SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "s1", req.SessionID)
		require.Equal(t, SearchModeQuick, req.SearchMode)
		require.Equal(t, []Answer{
			{QuestionID: "q1", Question: "Where?", Choice: "Alps"},
			{QuestionID: "q2", Question: "When?", Choice: SkipChoice},
		}, req.Answers)
		_, _ = w.Write([]byte(`{"session_id":"s1","status":"started_search"}`))
	})

	resp, err := c.SubmitAnswers(context.Background(), SubmitRequest{
		SessionID: "s1",
		Query:     "q",
		Answers: []Answer{
			{QuestionID: "q1", Question: "Where?", Choice: "Alps"},
			{QuestionID: "q2", Question: "When?", Choice: SkipChoice},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusStartedSearch, resp.Status)
}

func TestClient_SubmitAnswers_BackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	})

	_, err := c.SubmitAnswers(context.Background(), SubmitRequest{SessionID: "s1"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "rate limited", apiErr.Message)
}

func TestClient_PollResults(t *testing.T) {
	responses := []string{
		`{"session_id":"s 1","status":"processing"}`,
		`{"session_id":"s 1","status":"failed","error":"boom"}`,
		`{"session_id":"s 1","status":"completed","report":{"title":"T","answer":"A"},"images":["i.png"],"resources":[{"title":"r","url":"https://example.com/x","content":"c","score":0.5}],"user_details":"u"}`,
	}
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/results/", r.URL.Path)
		require.Equal(t, "s 1", r.URL.Query().Get("session_id"))
		_, _ = w.Write([]byte(responses[calls]))
		calls++
	})

	ctx := context.Background()
	res, err := c.PollResults(ctx, "s 1")
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, res.Status)

	res, err = c.PollResults(ctx, "s 1")
	require.NoError(t, err)
	require.Equal(t, StatusError, res.Status)
	require.Equal(t, "boom", res.Error)

	res, err = c.PollResults(ctx, "s 1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
	require.Equal(t, "T", res.Report.Title)
	require.Equal(t, []string{"i.png"}, res.Images)
	require.Len(t, res.Resources, 1)
	require.NotNil(t, res.Resources[0].Score)
	require.InDelta(t, 0.5, *res.Resources[0].Score, 1e-9)
	require.Equal(t, "u", res.UserDetails)
}

func TestResultsResponse_NormalizeUnknownStatus(t *testing.T) {
	require.Equal(t, StatusProcessing, (&ResultsResponse{Status: "queued"}).Normalize().Status)
	require.Equal(t, StatusError, (&ResultsResponse{Status: "queued", Error: "x"}).Normalize().Status)
	require.Equal(t, StatusCompleted, (&ResultsResponse{Status: "completed", Error: "ignored"}).Normalize().Status)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = c.GetResults(context.Background(), "s1")
	require.Error(t, err)
	var apiErr *APIError
	require.False(t, errors.As(err, &apiErr))
}
