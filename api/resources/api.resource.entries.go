// FilePath: api/resources/api.resource.entries.go
package resources

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/itsatony/etbridge/internal/bridge"
	"github.com/itsatony/etbridge/internal/errors"
	nuts "github.com/vaudience/go-nuts"
	"golang.org/x/text/language"
)

// EntryHandlers encapsulates the config-entry HTTP handlers
type EntryHandlers struct {
	bridge *bridge.Service
	locale string
}

// @Summary Create an entry
// @Description Run the config flow for a new Energy Tracker account
// @Tags entries
// @Accept json
// @Produce json
// @Param entry body bridge.EntryInput true "Name and API token"
// @Success 201 {object} models.EntryStatus
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Failure 503 {object} errors.APIError
// @Router /entries [post]
// @Security BearerAuth
func (h *EntryHandlers) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var in bridge.EntryInput
	requestID := nuts.NID("req", 12)

	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondWithError(w, r, h.locale, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	status, err := h.bridge.CreateEntry(r.Context(), in)
	if err != nil {
		respondWithError(w, r, h.locale, toAPIError("failed to create entry", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusCreated, status)
}

// @Summary List entries
// @Description List all configured accounts with their runtime status
// @Tags entries
// @Produce json
// @Success 200 {array} models.EntryStatus
// @Router /entries [get]
// @Security BearerAuth
func (h *EntryHandlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	entries, err := h.bridge.List(r.Context())
	if err != nil {
		respondWithError(w, r, h.locale, toAPIError("failed to list entries", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// @Summary Get an entry
// @Tags entries
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} models.EntryStatus
// @Failure 404 {object} errors.APIError
// @Router /entries/{id} [get]
// @Security BearerAuth
func (h *EntryHandlers) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	status, err := h.bridge.Get(r.Context(), id)
	if err != nil {
		respondWithError(w, r, h.locale, toAPIError("failed to get entry", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

// @Summary Reconfigure an entry
// @Description Change the name and optionally the API token, then reload the entry
// @Tags entries
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param entry body bridge.ReconfigureInput true "New name and optional token"
// @Success 200 {object} models.EntryStatus
// @Failure 400 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /entries/{id} [put]
// @Security BearerAuth
func (h *EntryHandlers) ReconfigureEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	var in bridge.ReconfigureInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondWithError(w, r, h.locale, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	status, err := h.bridge.ReconfigureEntry(r.Context(), id, in)
	if err != nil {
		respondWithError(w, r, h.locale, toAPIError("failed to reconfigure entry", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

// @Summary Delete an entry
// @Description Stop the entry, remove its entities and delete its data
// @Tags entries
// @Param id path string true "Entry ID"
// @Success 204 "No Content"
// @Failure 404 {object} errors.APIError
// @Router /entries/{id} [delete]
// @Security BearerAuth
func (h *EntryHandlers) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	if err := h.bridge.DeleteEntry(r.Context(), id); err != nil {
		respondWithError(w, r, h.locale, toAPIError("failed to delete entry", err).WithRequestID(requestID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary Refresh an entry
// @Description Run a refresh cycle now and return the resulting snapshot
// @Tags entries
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} models.Snapshot
// @Failure 404 {object} errors.APIError
// @Failure 503 {object} errors.APIError
// @Router /entries/{id}/refresh [post]
// @Security BearerAuth
func (h *EntryHandlers) RefreshEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	snap, err := h.bridge.Refresh(r.Context(), id)
	if err != nil {
		respondWithError(w, r, h.locale, toAPIError("refresh failed", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, snap)
}

// @Summary Get an entry's snapshot
// @Description Latest snapshot plus the sensor states derived from it
// @Tags entries
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} bridge.SnapshotView
// @Failure 404 {object} errors.APIError
// @Router /entries/{id}/snapshot [get]
// @Security BearerAuth
func (h *EntryHandlers) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	view, err := h.bridge.Snapshot(id)
	if err != nil {
		respondWithError(w, r, h.locale, toAPIError("failed to get snapshot", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

// Helper functions

// toAPIError keeps structured errors and wraps everything else
func toAPIError(msg string, err error) *errors.APIError {
	if apiErr, ok := errors.As(err); ok {
		return apiErr
	}
	return errors.NewInternalError(msg, err)
}

// requestLocale picks the first supported language of Accept-Language
func requestLocale(r *http.Request, fallback string) string {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil {
		return fallback
	}
	supported := errors.Locales()
	for _, tag := range tags {
		base, _ := tag.Base()
		for _, locale := range supported {
			if strings.EqualFold(base.String(), locale) {
				return locale
			}
		}
	}
	return fallback
}

func respondWithError(w http.ResponseWriter, r *http.Request, locale string, err *errors.APIError) {
	requestID := err.RequestID
	err = err.Localized(requestLocale(r, locale))
	err.RequestID = requestID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Errorf("[API] %s", err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
