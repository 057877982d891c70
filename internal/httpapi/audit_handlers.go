package httpapi

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"trailmark.org/internal/audit"
	"trailmark.org/internal/auth"
)

// authorizeAuditRead accepts either a logged-in session or a service
// token carrying audit.view.
func (a *API) authorizeAuditRead(w http.ResponseWriter, r *http.Request) bool {
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		if err := a.gateway.RequirePermission(r.Context(), sess, auth.PermAuditView); err != nil {
			writeForbidden(w, err)
			return false
		}
		return true
	}
	if a.tokens != nil {
		if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
			claims, err := a.tokens.Verify(h[7:])
			if err == nil {
				for _, p := range claims.Permissions {
					if p == auth.PermAuditView {
						return true
					}
				}
			}
		}
	}
	writeError(w, http.StatusUnauthorized, "not_authenticated", "not authenticated")
	return false
}

func (a *API) handleAuditSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if a.auditQuery == nil {
		writeError(w, http.StatusNotImplemented, "audit_disabled", "audit store is not configured")
		return
	}
	if !a.authorizeAuditRead(w, r) {
		return
	}

	entries, err := a.auditQuery.Search(r.Context(), filterFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search_failed", "audit search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entriesJSON(entries),
		"count":   len(entries),
	})
}

func (a *API) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if a.auditQuery == nil {
		writeError(w, http.StatusNotImplemented, "audit_disabled", "audit store is not configured")
		return
	}
	if !a.authorizeAuditRead(w, r) {
		return
	}

	entries, err := a.auditQuery.Search(r.Context(), filterFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export_failed", "audit export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-export.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"occurred_at", "actor", "origin_ip", "action", "severity", "description", "detail"})
	for _, e := range entries {
		detail, _ := json.Marshal(e.Detail)
		_ = cw.Write([]string{
			e.OccurredAt.UTC().Format(time.RFC3339),
			e.Actor.DisplayName(),
			e.Origin.IP,
			e.Action,
			string(e.Severity),
			e.Description,
			string(detail),
		})
	}
	cw.Flush()
}

func filterFromQuery(r *http.Request) audit.Filter {
	q := r.URL.Query()
	f := audit.Filter{
		ActorUserID: q.Get("actor"),
		Action:      q.Get("action"),
		Severity:    audit.Severity(q.Get("severity")),
		OriginIP:    q.Get("origin"),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = t
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	return f
}

func entriesJSON(entries []audit.Entry) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"id":          e.ID,
			"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339),
			"actor":       e.Actor.DisplayName(),
			"actor_id":    e.Actor.UserID,
			"origin_ip":   e.Origin.IP,
			"action":      e.Action,
			"severity":    string(e.Severity),
			"description": e.Description,
			"detail":      e.Detail,
		})
	}
	return out
}
