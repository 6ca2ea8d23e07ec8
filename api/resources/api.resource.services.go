// FilePath: api/resources/api.resource.services.go
package resources

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/submission"
	nuts "github.com/vaudience/go-nuts"
)

var formDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// ServiceHandlers exposes the integration's actions
type ServiceHandlers struct {
	sender MeterReadingSender
	locale string
}

// @Summary Send a meter reading
// @Description Read the numeric state of a Home Assistant entity and submit it as a new reading of an Energy Tracker device
// @Tags services
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Param request body submission.Request true "Action parameters"
// @Success 200 {object} submission.Result
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Failure 429 {object} errors.APIError
// @Failure 503 {object} errors.APIError
// @Router /services/send_meter_reading [post]
// @Security BearerAuth
func (h *ServiceHandlers) SendMeterReading(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	req, err := decodeSubmission(r)
	if err != nil {
		respondWithError(w, r, h.locale, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	result, err := h.sender.SendMeterReading(r.Context(), req)
	if err != nil {
		respondWithError(w, r, h.locale, toAPIError("failed to send meter reading", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// decodeSubmission accepts a JSON body or form-encoded parameters
func decodeSubmission(r *http.Request) (submission.Request, error) {
	var req submission.Request
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		err := formDecoder.Decode(&req, r.PostForm)
		return req, err
	default:
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
}
