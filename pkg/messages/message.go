package messages

import (
	"net/url"
	"time"

	"github.com/go-go-golems/clarinet/pkg/searchapi"
)

// Type tags a chat message. The set is closed.
type Type string

const (
	TypeUser     Type = "user"
	TypeSystem   Type = "system"
	TypeQuestion Type = "question"
	TypeAnswer   Type = "answer"
	TypeResult   Type = "result"
	TypeLoading  Type = "loading"
)

func (t Type) Valid() bool {
	switch t {
	case TypeUser, TypeSystem, TypeQuestion, TypeAnswer, TypeResult, TypeLoading:
		return true
	}
	return false
}

// Payload is the typed per-message-type data attached to a message.
// Implementations: QuestionPayload, ReportPayload, ResourcePayload.
type Payload interface {
	messageType() Type
}

// QuestionPayload links a question message to its clarification question.
type QuestionPayload struct {
	QuestionID string `json:"question_id"`
}

func (QuestionPayload) messageType() Type { return TypeQuestion }

// ReportPayload is the full report bundle delivered when a search completes.
type ReportPayload struct {
	Report      searchapi.Report     `json:"report"`
	Images      []string             `json:"images"`
	Resources   []searchapi.Resource `json:"resources"`
	UserDetails string               `json:"user_details,omitempty"`
}

func (ReportPayload) messageType() Type { return TypeResult }

// ResourcePayload is a single source, used when the backend returned resources but no report.
type ResourcePayload struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Source      string   `json:"source"`
	Content     string   `json:"content"`
	Score       *float64 `json:"score,omitempty"`
	Image       string   `json:"image,omitempty"`
	SearchQuery string   `json:"search_query,omitempty"`
}

func (ResourcePayload) messageType() Type { return TypeResult }

// Message is one entry of the visible conversation.
type Message struct {
	ID             string
	Type           Type
	Content        string
	Timestamp      time.Time
	Choices        []string
	SelectedChoice string
	Payload        Payload
}

// HasSelection reports whether a question message has been answered.
func (m Message) HasSelection() bool {
	return m.SelectedChoice != ""
}

// Options returns the selectable options of a question: its choices followed by Skip.
func (m Message) Options() []string {
	if m.Type != TypeQuestion {
		return nil
	}
	ret := make([]string, 0, len(m.Choices)+1)
	ret = append(ret, m.Choices...)
	return append(ret, searchapi.SkipChoice)
}

// QuestionID returns the clarification question id of a question message.
func (m Message) QuestionID() (string, bool) {
	p, ok := m.Payload.(QuestionPayload)
	if !ok || p.QuestionID == "" {
		return "", false
	}
	return p.QuestionID, true
}

func (m Message) clone() Message {
	if m.Choices != nil {
		m.Choices = append([]string(nil), m.Choices...)
	}
	return m
}

func NewUser(content string) Message {
	return Message{Type: TypeUser, Content: content}
}

func NewSystem(content string) Message {
	return Message{Type: TypeSystem, Content: content}
}

func NewLoading(content string) Message {
	return Message{Type: TypeLoading, Content: content}
}

func NewQuestion(q searchapi.ClarificationQuestion) Message {
	return Message{
		Type:    TypeQuestion,
		Content: q.Text,
		Choices: append([]string(nil), q.Choices...),
		Payload: QuestionPayload{QuestionID: q.QuestionID},
	}
}

func NewReport(p ReportPayload) Message {
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Resources == nil {
		p.Resources = []searchapi.Resource{}
	}
	return Message{Type: TypeResult, Payload: p}
}

// NewResource builds a per-source result message. Content falls back to the title.
func NewResource(r searchapi.Resource) Message {
	content := r.Content
	if content == "" {
		content = r.Title
	}
	return Message{
		Type:    TypeResult,
		Content: content,
		Payload: ResourcePayload{
			Title:       r.Title,
			URL:         r.URL,
			Source:      Hostname(r.URL),
			Content:     r.Content,
			Score:       r.Score,
			Image:       r.Image,
			SearchQuery: r.SearchQuery,
		},
	}
}

// Hostname extracts the host of a resource url, or "" when the url does not parse.
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
