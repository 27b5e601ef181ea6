package historystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SQLiteSearchStore struct {
	db *sql.DB
}

var _ SearchStore = &SQLiteSearchStore{}

// searchPayload holds the columns stored as JSON.
type searchPayload struct {
	Report      json.RawMessage `json:"report,omitempty"`
	Images      []string        `json:"images,omitempty"`
	Resources   json.RawMessage `json:"resources,omitempty"`
	UserDetails string          `json:"user_details,omitempty"`
}

func NewSQLiteSearchStore(dsn string) (*SQLiteSearchStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite search store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite search store: open")
	}
	s := &SQLiteSearchStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SQLiteSearchDSNForFile returns a DSN with WAL and a busy timeout for path.
func SQLiteSearchDSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite search store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}

func (s *SQLiteSearchStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteSearchStore) migrate() error {
	if s == nil || s.db == nil {
		return errors.New("sqlite search store: db is nil")
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS searches (
			session_id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			payload_json TEXT NOT NULL DEFAULT '{}',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS searches_by_created ON searches(created_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS searches_by_provider ON searches(provider, created_at_ms DESC);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite search store: migrate")
		}
	}
	return nil
}

func (s *SQLiteSearchStore) Save(ctx context.Context, r Record) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite search store: db is nil")
	}
	r = normalizeRecord(r, time.Now().UnixMilli())
	if r.SessionID == "" {
		return errors.New("sqlite search store: sessionID is empty")
	}
	payload, err := encodePayload(r)
	if err != nil {
		return err
	}
	title := ""
	if r.Report != nil {
		title = r.Report.Title
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO searches (session_id, query, provider, title, payload_json, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			query = excluded.query,
			provider = excluded.provider,
			title = excluded.title,
			payload_json = excluded.payload_json,
			created_at_ms = excluded.created_at_ms
	`, r.SessionID, r.Query, r.Provider, title, payload, r.CreatedAtMs)
	return errors.Wrap(err, "sqlite search store: save")
}

func (s *SQLiteSearchStore) Get(ctx context.Context, sessionID string) (Record, bool, error) {
	if s == nil || s.db == nil {
		return Record{}, false, errors.New("sqlite search store: db is nil")
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, query, provider, payload_json, created_at_ms
		FROM searches WHERE session_id = ?
	`, strings.TrimSpace(sessionID))
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

func (s *SQLiteSearchStore) List(ctx context.Context, q Query) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite search store: db is nil")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	where := []string{"1=1"}
	args := []any{}
	if q.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, q.Provider)
	}
	if q.SinceMs > 0 {
		where = append(where, "created_at_ms >= ?")
		args = append(args, q.SinceMs)
	}
	if q.Contains != "" {
		where = append(where, "LOWER(query) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Contains)+"%")
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, query, provider, payload_json, created_at_ms
		FROM searches
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at_ms DESC, session_id DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite search store: list")
	}
	defer func() { _ = rows.Close() }()

	ret := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, r)
	}
	return ret, errors.Wrap(rows.Err(), "sqlite search store: list rows")
}

func (s *SQLiteSearchStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("sqlite search store: db is nil")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM searches WHERE session_id = ?`, strings.TrimSpace(sessionID))
	if err != nil {
		return false, errors.Wrap(err, "sqlite search store: delete")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "sqlite search store: delete")
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		r       Record
		payload string
	)
	if err := row.Scan(&r.SessionID, &r.Query, &r.Provider, &payload, &r.CreatedAtMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, errors.Wrap(err, "sqlite search store: scan")
	}
	if err := decodePayload(payload, &r); err != nil {
		return Record{}, errors.Wrapf(err, "sqlite search store: decode %s", r.SessionID)
	}
	return r, nil
}

func encodePayload(r Record) (string, error) {
	p := searchPayload{Images: r.Images, UserDetails: r.UserDetails}
	if r.Report != nil {
		b, err := json.Marshal(r.Report)
		if err != nil {
			return "", errors.Wrap(err, "sqlite search store: marshal report")
		}
		p.Report = b
	}
	if len(r.Resources) > 0 {
		b, err := json.Marshal(r.Resources)
		if err != nil {
			return "", errors.Wrap(err, "sqlite search store: marshal resources")
		}
		p.Resources = b
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "sqlite search store: marshal payload")
	}
	return string(b), nil
}

func decodePayload(raw string, r *Record) error {
	var p searchPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return err
	}
	r.Images = p.Images
	r.UserDetails = p.UserDetails
	if len(p.Report) > 0 {
		if err := json.Unmarshal(p.Report, &r.Report); err != nil {
			return err
		}
	}
	if len(p.Resources) > 0 {
		if err := json.Unmarshal(p.Resources, &r.Resources); err != nil {
			return err
		}
	}
	return nil
}
