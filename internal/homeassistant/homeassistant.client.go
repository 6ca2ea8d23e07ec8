// FilePath: internal/homeassistant/homeassistant.client.go
package homeassistant

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

const (
	pathState         = "/api/states/{entityId}"
	pathCreateNotice  = "/api/services/persistent_notification/create"
	pathDismissNotice = "/api/services/persistent_notification/dismiss"
)

type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Client is a minimal Home Assistant REST client
type Client struct {
	http *resty.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.URL).
			SetTimeout(cfg.Timeout).
			SetAuthToken(cfg.Token).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}
}

type statePayload struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type notificationPayload struct {
	NotificationID string `json:"notification_id"`
	Title          string `json:"title,omitempty"`
	Message        string `json:"message,omitempty"`
}

// GetState reads the current state of an entity
func (c *Client) GetState(ctx context.Context, entityID string) (*models.HAState, error) {
	var state models.HAState
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("entityId", entityID).
		SetResult(&state).
		Get(pathState)
	if err != nil {
		return nil, errors.NewUnavailableError("home assistant unreachable", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, errors.NewNotFoundError("entity not found", nil).
			WithKey("entity_not_found", map[string]string{"entity_id": entityID})
	}
	if resp.IsError() {
		return nil, statusError("get state of "+entityID, resp)
	}
	if state.EntityID == "" {
		state.EntityID = entityID
	}
	return &state, nil
}

// SetState creates or replaces the state of an entity
func (c *Client) SetState(ctx context.Context, s models.SensorState) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("entityId", s.EntityID).
		SetBody(statePayload{State: s.State, Attributes: s.Attributes}).
		Post(pathState)
	if err != nil {
		return errors.NewUnavailableError("home assistant unreachable", err)
	}
	if resp.IsError() {
		return statusError("set state of "+s.EntityID, resp)
	}
	return nil
}

// DeleteState removes an entity; a missing entity is not an error
func (c *Client) DeleteState(ctx context.Context, entityID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("entityId", entityID).
		Delete(pathState)
	if err != nil {
		return errors.NewUnavailableError("home assistant unreachable", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return statusError("delete state of "+entityID, resp)
	}
	return nil
}

// CreateNotification shows (or replaces) a persistent notification
func (c *Client) CreateNotification(ctx context.Context, id, title, message string) error {
	return c.callService(ctx, pathCreateNotice, notificationPayload{NotificationID: id, Title: title, Message: message})
}

// DismissNotification removes a persistent notification
func (c *Client) DismissNotification(ctx context.Context, id string) error {
	return c.callService(ctx, pathDismissNotice, notificationPayload{NotificationID: id})
}

func (c *Client) callService(ctx context.Context, path string, body any) error {
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		return errors.NewUnavailableError("home assistant unreachable", err)
	}
	if resp.IsError() {
		return statusError("call "+path, resp)
	}
	return nil
}

func statusError(action string, resp *resty.Response) *errors.APIError {
	msg := fmt.Sprintf("home assistant: %s failed with HTTP %d", action, resp.StatusCode())
	nuts.L.Warnf("[HomeAssistant] %s", msg)
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return errors.NewAuthError(msg, nil).WithUpstreamStatus(resp.StatusCode())
	case resp.StatusCode() == http.StatusForbidden:
		return errors.NewAuthorizationError(msg, nil).WithUpstreamStatus(resp.StatusCode())
	case resp.StatusCode() >= 500:
		return errors.NewUnavailableError(msg, nil).WithUpstreamStatus(resp.StatusCode())
	}
	return errors.NewInternalError(msg, nil).WithUpstreamStatus(resp.StatusCode())
}
