// FilePath: internal/submission/submission.go
package submission

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// Request holds the parameters of the send_meter_reading action
type Request struct {
	EntryID        string `json:"entry_id" schema:"entry_id"`
	DeviceID       string `json:"device_id" schema:"device_id"`
	SourceEntityID string `json:"source_entity_id" schema:"source_entity_id"`
	// AllowRounding defaults to true when omitted.
	AllowRounding *bool `json:"allow_rounding,omitempty" schema:"allow_rounding"`
}

func (r Request) allowRounding() bool {
	return r.AllowRounding == nil || *r.AllowRounding
}

// Result describes a reading that was accepted by Energy Tracker
type Result struct {
	EntryID        string    `json:"entry_id"`
	DeviceID       string    `json:"device_id"`
	SourceEntityID string    `json:"source_entity_id"`
	SourceValue    float64   `json:"source_value"`
	SentValue      float64   `json:"sent_value"`
	Timestamp      time.Time `json:"timestamp"`
	AllowRounding  bool      `json:"allow_rounding"`
	DecimalPlaces  *int      `json:"decimal_places,omitempty"`
}

// ReadingAPI is the part of the Energy Tracker client used for submissions
type ReadingAPI interface {
	GetDevice(ctx context.Context, deviceID string) (*models.DeviceDetail, error)
	SubmitReading(ctx context.Context, sub models.ReadingSubmission) error
}

// StateReader reads entity states from Home Assistant
type StateReader interface {
	GetState(ctx context.Context, entityID string) (*models.HAState, error)
}

// IssueRaiser opens a repair issue for an entry whose token was rejected
type IssueRaiser interface {
	RaiseAuthIssue(ctx context.Context, entry *models.Entry, upstreamStatus int) error
}

// Account is a configured entry together with its API client
type Account struct {
	Entry *models.Entry
	API   ReadingAPI
}

// AccountLookup resolves an entry id to a running account
type AccountLookup interface {
	Account(entryID string) (*Account, error)
}

type Service struct {
	accounts AccountLookup
	states   StateReader
	issues   IssueRaiser
}

func NewService(accounts AccountLookup, states StateReader, issues IssueRaiser) *Service {
	return &Service{accounts: accounts, states: states, issues: issues}
}

// SendMeterReading reads the source entity's state and submits it as a new
// reading of the target device. No Energy Tracker call is made unless the
// source state is a usable number with a timestamp.
func (s *Service) SendMeterReading(ctx context.Context, req Request) (*Result, error) {
	if err := validateDeviceID(req.DeviceID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.SourceEntityID) == "" {
		return nil, errors.NewValidationError("source_entity_id is required", nil).
			WithKey("entity_not_found", map[string]string{"entity_id": req.SourceEntityID})
	}

	account, err := s.accounts.Account(req.EntryID)
	if err != nil {
		return nil, err
	}

	state, err := s.states.GetState(ctx, req.SourceEntityID)
	if err != nil {
		return nil, err
	}
	value, ts, err := usableValue(state)
	if err != nil {
		return nil, err
	}

	result := &Result{
		EntryID:        account.Entry.ID,
		DeviceID:       req.DeviceID,
		SourceEntityID: req.SourceEntityID,
		SourceValue:    value,
		SentValue:      value,
		Timestamp:      ts,
		AllowRounding:  req.allowRounding(),
	}

	if result.AllowRounding {
		detail, err := account.API.GetDevice(ctx, req.DeviceID)
		if err != nil {
			return nil, s.mapAPIError(ctx, account.Entry, err)
		}
		if places := detail.Meter.DecimalPlaces; places != nil {
			rounded, err := RoundHalfUp(value, *places)
			if err != nil {
				return nil, errors.NewValidationError(err.Error(), err)
			}
			result.SentValue = rounded
			result.DecimalPlaces = places
		}
	}

	err = account.API.SubmitReading(ctx, models.ReadingSubmission{
		DeviceID:      req.DeviceID,
		Value:         result.SentValue,
		Timestamp:     ts,
		AllowRounding: result.AllowRounding,
	})
	if err != nil {
		return nil, s.mapAPIError(ctx, account.Entry, err)
	}

	nuts.L.Infof("[Submission] [%s] Reading %g sent to device %s", req.SourceEntityID, result.SentValue, req.DeviceID)
	return result, nil
}

func (s *Service) mapAPIError(ctx context.Context, entry *models.Entry, err error) error {
	apiErr, ok := errors.As(err)
	if !ok {
		return errors.NewInternalError("submission failed", err)
	}
	switch {
	case errors.IsAuth(apiErr):
		if s.issues != nil {
			if ierr := s.issues.RaiseAuthIssue(ctx, entry, apiErr.UpstreamStatus); ierr != nil {
				nuts.L.Errorf("[Submission] Failed to raise repair issue for %s: %v", entry.ID, ierr)
			}
		}
		return errors.NewAuthError("reauthentication required", apiErr).
			WithKey("reauth_required", map[string]string{"name": entry.Name}).
			WithUpstreamStatus(apiErr.UpstreamStatus)
	case errors.IsTransient(apiErr):
		nuts.L.Warnf("[Submission] Transient failure for %s, not retrying: %v", entry.ID, apiErr)
	}
	return apiErr
}

func validateDeviceID(id string) error {
	invalid := func() error {
		return errors.NewValidationError("invalid device id", nil).
			WithKey("invalid_device_id", map[string]string{"device_id": id})
	}
	if strings.HasPrefix(strings.ToLower(id), "std-") {
		return invalid()
	}
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return invalid()
	}
	return nil
}

func usableValue(state *models.HAState) (float64, time.Time, error) {
	raw := strings.TrimSpace(state.State)
	placeholders := map[string]string{"entity_id": state.EntityID, "state": raw}
	switch strings.ToLower(raw) {
	case "", models.StateUnavailable, models.StateUnknown:
		return 0, time.Time{}, errors.NewValidationError("source entity has no usable state", nil).
			WithKey("invalid_state", placeholders)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, time.Time{}, errors.NewValidationError("source entity state is not numeric", err).
			WithKey("invalid_state", placeholders)
	}
	ts, ok := state.Timestamp()
	if !ok {
		return 0, time.Time{}, errors.NewValidationError("source entity has no timestamp", nil).
			WithKey("missing_timestamp", placeholders)
	}
	return value, ts, nil
}
