package submission

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deviceID = "12345678-1234-1234-1234-123456789abc"

type fakeAPI struct {
	places    *int
	getErr    error
	submitErr error
	getCalls  int
	submitted []models.ReadingSubmission
}

func (f *fakeAPI) GetDevice(_ context.Context, id string) (*models.DeviceDetail, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &models.DeviceDetail{Device: models.Device{ID: id}, Meter: models.Meter{DecimalPlaces: f.places}}, nil
}

func (f *fakeAPI) SubmitReading(_ context.Context, sub models.ReadingSubmission) error {
	f.submitted = append(f.submitted, sub)
	return f.submitErr
}

func (f *fakeAPI) calls() int { return f.getCalls + len(f.submitted) }

type fakeStates map[string]*models.HAState

func (f fakeStates) GetState(_ context.Context, id string) (*models.HAState, error) {
	if s, ok := f[id]; ok {
		return s, nil
	}
	return nil, errors.NewNotFoundError("entity not found", nil)
}

type fakeAccounts struct {
	account *Account
}

func (f fakeAccounts) Account(id string) (*Account, error) {
	if f.account == nil || f.account.Entry.ID != id {
		return nil, errors.NewNotFoundError("entry not found", nil)
	}
	return f.account, nil
}

type fakeIssues struct {
	raised []int
}

func (f *fakeIssues) RaiseAuthIssue(_ context.Context, _ *models.Entry, status int) error {
	f.raised = append(f.raised, status)
	return nil
}

var updated = time.Date(2026, 2, 12, 10, 30, 0, 0, time.UTC)

func setup(state string, api *fakeAPI) (*Service, *fakeIssues) {
	states := fakeStates{
		"sensor.grid": {EntityID: "sensor.grid", State: state, LastUpdated: &updated},
	}
	issues := &fakeIssues{}
	accounts := fakeAccounts{account: &Account{Entry: &models.Entry{ID: "entry-1", Name: "Home", APIToken: "token-123456789"}, API: api}}
	return NewService(accounts, states, issues), issues
}

func request() Request {
	return Request{EntryID: "entry-1", DeviceID: deviceID, SourceEntityID: "sensor.grid"}
}

func TestRoundingEnabledByDefault(t *testing.T) {
	api := &fakeAPI{places: intPtr(2)}
	svc, _ := setup("12.345", api)

	res, err := svc.SendMeterReading(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, api.submitted, 1)
	assert.Equal(t, 12.35, api.submitted[0].Value)
	assert.True(t, api.submitted[0].AllowRounding)
	assert.Equal(t, updated, api.submitted[0].Timestamp)
	assert.Equal(t, 12.345, res.SourceValue)
	assert.Equal(t, 12.35, res.SentValue)
}

func TestRoundingDisabledSendsValueUnchanged(t *testing.T) {
	api := &fakeAPI{places: intPtr(2)}
	svc, _ := setup("12.345", api)
	req := request()
	off := false
	req.AllowRounding = &off

	_, err := svc.SendMeterReading(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, api.submitted, 1)
	assert.Equal(t, 12.345, api.submitted[0].Value)
	assert.False(t, api.submitted[0].AllowRounding)
	assert.Zero(t, api.getCalls)
}

func TestRoundingWithoutPrecisionKeepsValue(t *testing.T) {
	api := &fakeAPI{}
	svc, _ := setup("12.345", api)

	_, err := svc.SendMeterReading(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, 12.345, api.submitted[0].Value)
	assert.True(t, api.submitted[0].AllowRounding)
}

func TestUnusableStatesMakeNoNetworkCall(t *testing.T) {
	for _, state := range []string{"unavailable", "unknown", "", "abc", "NaN"} {
		t.Run(state, func(t *testing.T) {
			api := &fakeAPI{places: intPtr(2)}
			svc, _ := setup(state, api)

			_, err := svc.SendMeterReading(context.Background(), request())
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Zero(t, api.calls())
		})
	}
}

func TestMissingTimestampIsValidationError(t *testing.T) {
	api := &fakeAPI{}
	svc, _ := setup("10", api)
	svc.states = fakeStates{"sensor.grid": {EntityID: "sensor.grid", State: "10"}}

	_, err := svc.SendMeterReading(context.Background(), request())
	require.Error(t, err)
	apiErr, _ := errors.As(err)
	assert.Equal(t, "missing_timestamp", apiErr.Key)
	assert.Zero(t, api.calls())
}

func TestInvalidDeviceIDs(t *testing.T) {
	for _, id := range []string{"std-" + deviceID, "not-a-uuid", "", "12345678123412341234123456789abc"} {
		api := &fakeAPI{}
		svc, _ := setup("10", api)
		req := request()
		req.DeviceID = id

		_, err := svc.SendMeterReading(context.Background(), req)
		assert.True(t, errors.IsValidation(err), id)
		assert.Zero(t, api.calls())
	}
}

func TestUnknownDeviceReportsDeviceNotFound(t *testing.T) {
	notFound := errors.NewNotFoundError("device not found", nil).WithKey("device_not_found", nil).WithUpstreamStatus(404)
	api := &fakeAPI{getErr: notFound}
	svc, _ := setup("10", api)

	_, err := svc.SendMeterReading(context.Background(), request())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	apiErr, _ := errors.As(err)
	assert.Contains(t, strings.ToLower(apiErr.Message), "device not found")
}

func TestAuthFailureRaisesIssue(t *testing.T) {
	api := &fakeAPI{submitErr: errors.NewAuthError("auth failed", nil).WithKey("auth_failed", nil).WithUpstreamStatus(401)}
	svc, issues := setup("10", api)
	off := false
	req := request()
	req.AllowRounding = &off

	_, err := svc.SendMeterReading(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
	apiErr, _ := errors.As(err)
	assert.Equal(t, "reauth_required", apiErr.Key)
	assert.Contains(t, apiErr.Message, "Home")
	assert.Equal(t, []int{401}, issues.raised)
}

func TestTransientFailureIsReturnedWithoutRetry(t *testing.T) {
	api := &fakeAPI{submitErr: errors.NewUnavailableError("server error", nil)}
	svc, _ := setup("10", api)
	off := false
	req := request()
	req.AllowRounding = &off

	_, err := svc.SendMeterReading(context.Background(), req)
	assert.True(t, errors.IsTransient(err))
	assert.Len(t, api.submitted, 1)
}

func TestUnknownEntryAndEntity(t *testing.T) {
	svc, _ := setup("10", &fakeAPI{})
	req := request()
	req.EntryID = "other"
	_, err := svc.SendMeterReading(context.Background(), req)
	assert.True(t, errors.IsNotFound(err))

	req = request()
	req.SourceEntityID = "sensor.missing"
	_, err = svc.SendMeterReading(context.Background(), req)
	assert.True(t, errors.IsNotFound(err))
}

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		in     float64
		places int
		want   float64
	}{
		{12.345, 2, 12.35},
		{12.344, 2, 12.34},
		{2.5, 0, 3},
		{-2.5, 0, -3},
		{-12.345, 2, -12.35},
		{1.005, 2, 1.01},
		{1234.56, 0, 1235},
		{7, 3, 7},
	}
	for _, tc := range cases {
		got, err := RoundHalfUp(tc.in, tc.places)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%v @ %d", tc.in, tc.places)
	}

	_, err := RoundHalfUp(1, -1)
	assert.Error(t, err)
}

func intPtr(v int) *int { return &v }
