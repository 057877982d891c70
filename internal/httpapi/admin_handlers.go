package httpapi

import (
	"net/http"

	"trailmark.org/internal/auth"
)

// handleMaintenanceCleanup runs the retention sweeps. Triggered by an
// external cron collaborator; all sweeps are append/delete-only and safe
// against live traffic.
func (a *API) handleMaintenanceCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if a.maintainer == nil {
		writeError(w, http.StatusNotImplemented, "maintenance_disabled", "maintenance is not configured")
		return
	}
	sess, _ := auth.SessionFromContext(r.Context())
	if err := a.gateway.RequirePermission(r.Context(), sess, auth.PermSystemMaintain); err != nil {
		writeForbidden(w, err)
		return
	}

	result, err := a.maintainer.RunCleanup(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cleanup_failed", "cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
