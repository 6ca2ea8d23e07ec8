// FilePath: api/resources/api.resource.issues.go
package resources

import (
	"net/http"

	"github.com/itsatony/etbridge/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// IssueHandlers serves the open repair issues
type IssueHandlers struct {
	issues IssueLister
	locale string
}

// @Summary List repair issues
// @Description Open repair issues, optionally limited to one entry
// @Tags issues
// @Produce json
// @Param entry_id query string false "Entry ID"
// @Success 200 {array} models.Issue
// @Failure 503 {object} errors.APIError
// @Router /issues [get]
// @Security BearerAuth
func (h *IssueHandlers) ListIssues(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var (
		issues []models.Issue
		err    error
	)
	if entryID := r.URL.Query().Get("entry_id"); entryID != "" {
		issues, err = h.issues.ListEntry(r.Context(), entryID)
	} else {
		issues, err = h.issues.List(r.Context())
	}
	if err != nil {
		respondWithError(w, r, h.locale, toAPIError("failed to list issues", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, issues)
}
