package searchapi

// Status values reported by the backend.
const (
	StatusCompleted     = "completed"
	StatusStartedSearch = "started_search"
	StatusProcessing    = "processing"
	StatusError         = "error"
)

// SignalNoRelatedQuestions is returned by the start endpoint when the backend
// could not produce clarification questions, usually because the LLM key is bad.
const SignalNoRelatedQuestions = "no_related_questions"

// SearchModeQuick is the only search mode the client sends.
const SearchModeQuick = "quick"

// SkipChoice marks a clarification question the user chose not to answer.
const SkipChoice = "Skip"

type ClarificationQuestion struct {
	QuestionID string   `json:"question_id"`
	Text       string   `json:"text"`
	Choices    []string `json:"choices"`
}

// StartRequest is the body of POST /start/.
type StartRequest struct {
	Query    string `json:"query"`
	Provider string `json:"LLM_PROVIDER"`
	APIKey   string `json:"LLM_API_KEY"`
	BaseURL  string `json:"LLM_BASE_URL"`
	Model    string `json:"LLM_MODEL"`
}

type StartResponse struct {
	SessionID     string                  `json:"session_id"`
	Clarification []ClarificationQuestion `json:"clarification"`
	Signal        string                  `json:"signal,omitempty"`
	Error         string                  `json:"error,omitempty"`
}

// Answer is one entry of the submitted answers array.
type Answer struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Choice     string `json:"choice"`
}

// SubmitRequest is the body of POST /search/.
type SubmitRequest struct {
	SessionID  string   `json:"session_id"`
	SearchMode string   `json:"search_mode"`
	Query      string   `json:"query"`
	Answers    []Answer `json:"answers"`
}

type SubmitResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type Report struct {
	Title  string `json:"title"`
	Answer string `json:"answer"`
}

// Resource is a single web source backing a report.
type Resource struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Content     string   `json:"content"`
	Score       *float64 `json:"score,omitempty"`
	Image       string   `json:"image,omitempty"`
	SearchQuery string   `json:"search_query,omitempty"`
}

// ResultsResponse is the raw body of GET /results/.
type ResultsResponse struct {
	SessionID   string     `json:"session_id"`
	Status      string     `json:"status"`
	SearchMode  string     `json:"search_mode,omitempty"`
	Query       string     `json:"query,omitempty"`
	UserDetails string     `json:"user_details,omitempty"`
	Report      *Report    `json:"report,omitempty"`
	Images      []string   `json:"images,omitempty"`
	Resources   []Resource `json:"resources,omitempty"`
	CreatedAt   string     `json:"created_at,omitempty"`
	CompletedAt string     `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// PollResult is a ResultsResponse reduced to the three states the flow cares about:
// completed, error and processing.
type PollResult struct {
	Status      string
	Report      *Report
	Images      []string
	Resources   []Resource
	UserDetails string
	Error       string
}

// Normalize maps the raw backend status onto completed, error or processing.
// Any non-completed response carrying an error field is an error.
func (r *ResultsResponse) Normalize() *PollResult {
	if r == nil {
		return &PollResult{Status: StatusProcessing}
	}
	switch {
	case r.Status == StatusCompleted:
		return &PollResult{
			Status:      StatusCompleted,
			Report:      r.Report,
			Images:      r.Images,
			Resources:   r.Resources,
			UserDetails: r.UserDetails,
		}
	case r.Error != "":
		return &PollResult{Status: StatusError, Error: r.Error}
	default:
		return &PollResult{Status: StatusProcessing}
	}
}
