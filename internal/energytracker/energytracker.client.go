// FilePath: internal/energytracker/energytracker.client.go
package energytracker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

const (
	DefaultBaseURL        = "https://public-api.energy-tracker.best-ios-apps.de"
	DefaultRequestTimeout = 10 * time.Second

	pathDevices       = "/v1/devices/standard"
	pathDevice        = "/v1/devices/standard/{deviceId}"
	pathLatestReading = "/v3/devices/standard/{deviceId}/meter-readings"
	pathSubmitReading = "/v1/devices/standard/{deviceId}/meter-readings"
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the Energy Tracker public API for one account.
// It never retries; that is up to the caller.
type Client struct {
	http    *resty.Client
	timeout time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.Token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: httpClient, timeout: cfg.Timeout}
}

// ListDevices returns all standard devices of the account
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	resp, err := c.http.R().SetContext(ctx).Get(pathDevices)
	if err != nil {
		return nil, c.connectionError("[devices]", err)
	}
	if resp.IsError() {
		return nil, c.responseError("[devices]", resp)
	}

	data, err := unwrapList(resp.Body())
	if err != nil {
		return nil, invalidResponse("[devices]", err)
	}
	var raw []rawDevice
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalidResponse("[devices]", err)
	}
	devices := make([]models.Device, 0, len(raw))
	for _, d := range raw {
		device, err := d.toModel()
		if err != nil {
			return nil, invalidResponse("[devices]", err)
		}
		devices = append(devices, device)
	}
	return devices, nil
}

// GetDevice returns a device with its meter configuration
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*models.DeviceDetail, error) {
	prefix := "[" + deviceID + "]"
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("deviceId", deviceID).
		Get(pathDevice)
	if err != nil {
		return nil, c.connectionError(prefix, err)
	}
	if resp.IsError() {
		return nil, c.responseError(prefix, resp)
	}

	data, err := unwrapObject(resp.Body())
	if err != nil {
		return nil, invalidResponse(prefix, err)
	}
	var raw rawDevice
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalidResponse(prefix, err)
	}
	detail, err := raw.toDetail()
	if err != nil {
		return nil, invalidResponse(prefix, err)
	}
	return detail, nil
}

// GetLatestReading returns the newest reading of a device, or nil if it has none
func (c *Client) GetLatestReading(ctx context.Context, deviceID string) (*models.Reading, error) {
	prefix := "[" + deviceID + "]"
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("deviceId", deviceID).
		SetQueryParams(map[string]string{"sort": "desc", "limit": "1"}).
		Get(pathLatestReading)
	if err != nil {
		return nil, c.connectionError(prefix, err)
	}
	if resp.IsError() {
		return nil, c.responseError(prefix, resp)
	}

	data, err := unwrapList(resp.Body())
	if err != nil {
		return nil, invalidResponse(prefix, err)
	}
	var raw []rawReading
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalidResponse(prefix, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	reading, err := raw[0].toModel(deviceID)
	if err != nil {
		return nil, invalidResponse(prefix, err)
	}
	return reading, nil
}

// SubmitReading posts a single meter reading
func (c *Client) SubmitReading(ctx context.Context, sub models.ReadingSubmission) error {
	prefix := "[" + sub.DeviceID + "]"
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("deviceId", sub.DeviceID).
		SetBody(submitBody{
			Value:     sub.Value,
			Timestamp: sub.Timestamp.UTC().Format(timestampLayout),
		})
	if sub.AllowRounding {
		req.SetQueryParam("allowRounding", "true")
	}

	resp, err := req.Post(pathSubmitReading)
	if err != nil {
		return c.connectionError(prefix, err)
	}
	if resp.IsError() {
		return c.responseError(prefix, resp)
	}
	nuts.L.Infof("[EnergyTracker] %s Reading sent: %g", prefix, sub.Value)
	return nil
}

func (c *Client) responseError(prefix string, resp *resty.Response) *errors.APIError {
	status := resp.StatusCode()
	msg := parseErrorMessage(resp.Body())

	switch {
	case status == http.StatusBadRequest:
		if msg == "" {
			msg = "Invalid input"
		}
		nuts.L.Warnf("[EnergyTracker] %s Bad Request: %s", prefix, msg)
		return errors.NewValidationError(msg, nil).
			WithKey("bad_request", map[string]string{"error": msg}).
			WithUpstreamStatus(status)

	case status == http.StatusUnauthorized:
		nuts.L.Errorf("[EnergyTracker] %s Unauthorized: Check your access token", prefix)
		return errors.NewAuthError("authentication failed", nil).
			WithKey("auth_failed", nil).
			WithUpstreamStatus(status)

	case status == http.StatusForbidden:
		nuts.L.Errorf("[EnergyTracker] %s Forbidden: Insufficient permissions", prefix)
		return errors.NewAuthError("insufficient permissions", nil).
			WithKey("auth_failed", nil).
			WithUpstreamStatus(status)

	case status == http.StatusNotFound:
		nuts.L.Warnf("[EnergyTracker] %s Not Found: Device not found", prefix)
		return errors.NewNotFoundError("device not found", nil).
			WithKey("device_not_found", nil).
			WithUpstreamStatus(status)

	case status == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header().Get("Retry-After"))
		if retryAfter > 0 {
			nuts.L.Warnf("[EnergyTracker] %s Too many requests: Retry after %d seconds", prefix, retryAfter)
			return errors.NewRateLimitError("rate limit exceeded", nil).
				WithKey("rate_limit", map[string]string{"retry_after": strconv.Itoa(retryAfter)}).
				WithUpstreamStatus(status).
				WithDetails(map[string]int{"retry_after": retryAfter})
		}
		nuts.L.Warnf("[EnergyTracker] %s Too many requests: Rate limit exceeded", prefix)
		return errors.NewRateLimitError("rate limit exceeded", nil).
			WithKey("rate_limit_no_time", nil).
			WithUpstreamStatus(status)

	case status >= 500 && status <= 599:
		if msg == "" {
			msg = "Internal server error"
		}
		nuts.L.Warnf("[EnergyTracker] %s Server error %d: %s", prefix, status, msg)
		return errors.NewUnavailableError(msg, nil).
			WithKey("server_error", map[string]string{"error": msg}).
			WithUpstreamStatus(status)
	}

	if msg == "" {
		msg = "Unknown error"
	}
	nuts.L.Warnf("[EnergyTracker] %s Unexpected HTTP %d: %s", prefix, status, msg)
	return errors.NewInternalError(msg, nil).
		WithKey("unknown_error", map[string]string{"error": msg}).
		WithUpstreamStatus(status)
}

func (c *Client) connectionError(prefix string, err error) *errors.APIError {
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		nuts.L.Errorf("[EnergyTracker] %s Request timed out after %s", prefix, c.timeout)
		return errors.NewUnavailableError("request timed out", err).WithKey("timeout", nil)
	}

	var urlErr *url.Error
	if stderrors.As(err, &urlErr) || stderrors.As(err, &netErr) {
		nuts.L.Errorf("[EnergyTracker] %s Network error: %v", prefix, err)
		return errors.NewUnavailableError("network error", err).WithKey("network_error", nil)
	}

	nuts.L.Errorf("[EnergyTracker] %s Unexpected error: %v", prefix, err)
	return errors.NewUnavailableError("connection failed", err).WithKey("connection_failed", nil)
}

func invalidResponse(prefix string, err error) *errors.APIError {
	nuts.L.Errorf("[EnergyTracker] %s Unexpected response shape: %v", prefix, err)
	return errors.NewUnavailableError(fmt.Sprintf("invalid response: %v", err), err).WithKey("invalid_response", nil)
}
