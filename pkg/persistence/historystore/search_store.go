package historystore

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/clarinet/pkg/searchapi"
)

// Record is one completed search as shown in the history.
type Record struct {
	SessionID   string               `json:"session_id"`
	Query       string               `json:"query"`
	Provider    string               `json:"provider"`
	Report      *searchapi.Report    `json:"report,omitempty"`
	Images      []string             `json:"images,omitempty"`
	Resources   []searchapi.Resource `json:"resources,omitempty"`
	UserDetails string               `json:"user_details,omitempty"`
	CreatedAtMs int64                `json:"created_at_ms"`
}

// CreatedAt converts CreatedAtMs to a time.
func (r Record) CreatedAt() time.Time {
	return time.UnixMilli(r.CreatedAtMs)
}

// Title is the report title, falling back to the query.
func (r Record) Title() string {
	if r.Report != nil && strings.TrimSpace(r.Report.Title) != "" {
		return r.Report.Title
	}
	return r.Query
}

// Query filters List. Zero values disable a filter.
type Query struct {
	Provider string
	// Contains matches the query text case-insensitively.
	Contains string
	SinceMs  int64
	Limit    int
}

func (q Query) matches(r Record) bool {
	if q.Provider != "" && r.Provider != q.Provider {
		return false
	}
	if q.SinceMs > 0 && r.CreatedAtMs < q.SinceMs {
		return false
	}
	if q.Contains != "" && !strings.Contains(strings.ToLower(r.Query), strings.ToLower(q.Contains)) {
		return false
	}
	return true
}

// SearchStore persists completed searches keyed by backend session id.
// Saving a session id twice replaces the earlier record. List returns newest first.
type SearchStore interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, sessionID string) (Record, bool, error)
	List(ctx context.Context, q Query) ([]Record, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
	Close() error
}

const defaultListLimit = 50

func normalizeRecord(r Record, nowMs int64) Record {
	r.SessionID = strings.TrimSpace(r.SessionID)
	if r.CreatedAtMs <= 0 {
		r.CreatedAtMs = nowMs
	}
	return r
}
