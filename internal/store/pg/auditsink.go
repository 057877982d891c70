package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trailmark.org/internal/audit"
)

const defaultSearchLimit = 200

// AuditSink is the structured, queryable half of the dual-sink trail.
type AuditSink struct{ db *sql.DB }

var (
	_ audit.Sink    = (*AuditSink)(nil)
	_ audit.Querier = (*AuditSink)(nil)
)

// NewAuditSink builds the sink over the shared pool.
func NewAuditSink(s *Store) *AuditSink { return &AuditSink{db: s.db} }

func (s *AuditSink) Name() string { return "store" }

func (s *AuditSink) Write(ctx context.Context, e *audit.Entry) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		detail = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_log(id, occurred_at, actor_user_id, actor_display, origin_ip, user_agent,
			request_method, request_path, action, description, detail, severity)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, e.ID, e.OccurredAt, e.Actor.UserID, e.Actor.DisplayName(), e.Origin.IP, e.Origin.UserAgent,
		e.Origin.Method, e.Origin.Path, e.Action, e.Description, detail, string(e.Severity))
	return err
}

// Search filters stored entries for the security-review surface. All
// predicates are optional and combined with AND.
func (s *AuditSink) Search(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.ActorUserID != "" {
		add("actor_user_id = $%d", f.ActorUserID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.Severity != "" {
		add("severity = $%d", string(f.Severity))
	}
	if f.OriginIP != "" {
		add("origin_ip = $%d", f.OriginIP)
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at <= $%d", f.To)
	}

	query := `select id, occurred_at, actor_user_id, actor_display, origin_ip, user_agent,
		request_method, request_path, action, description, detail, severity
		from audit_log`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultSearchLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" order by occurred_at desc limit $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e        audit.Entry
			detail   []byte
			severity string
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.Actor.UserID, &e.Actor.Display, &e.Origin.IP,
			&e.Origin.UserAgent, &e.Origin.Method, &e.Origin.Path, &e.Action, &e.Description,
			&detail, &severity); err != nil {
			return nil, err
		}
		e.Severity = audit.Severity(severity)
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &e.Detail)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Cleanup deletes structured rows older than the retention horizon. The
// file sink purges on its own schedule; the two may briefly disagree.
func (s *AuditSink) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention must be positive")
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, `delete from audit_log where occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
