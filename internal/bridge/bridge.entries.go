package bridge

import (
	"context"
	"strings"
	"time"

	"github.com/itsatony/etbridge/internal/energytracker"
	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
	"github.com/itsatony/etbridge/internal/sensors"
	nuts "github.com/vaudience/go-nuts"
)

// EntryInput is the user step of the config flow
type EntryInput struct {
	Name  string `json:"name" schema:"name"`
	Token string `json:"api_token" schema:"api_token"`
}

// ReconfigureInput is the reconfigure step. A nil Token keeps the current one.
type ReconfigureInput struct {
	Name  string  `json:"name" schema:"name"`
	Token *string `json:"api_token,omitempty" schema:"api_token"`
}

// SnapshotView is an entry's snapshot together with the derived sensor states
type SnapshotView struct {
	Snapshot          *models.Snapshot     `json:"snapshot"`
	Sensors           []models.SensorState `json:"sensors"`
	LastUpdateSuccess bool                 `json:"last_update_success"`
}

func fieldError(field, key string, placeholders map[string]string) *errors.APIError {
	return errors.NewValidationError(key, nil).
		WithKey(key, placeholders).
		WithDetails(map[string]string{"field": field})
}

// CreateEntry validates the input, stores a new entry and starts its runtime
// with a first refresh
func (s *Service) CreateEntry(ctx context.Context, in EntryInput) (*models.EntryStatus, error) {
	name := strings.TrimSpace(in.Name)
	token := strings.TrimSpace(in.Token)

	if token == "" {
		return nil, fieldError("api_token", "empty_token", nil)
	}
	if name == "" {
		return nil, fieldError("name", "empty_name", nil)
	}
	if err := s.checkName(ctx, name, ""); err != nil {
		return nil, err
	}
	if err := s.checkToken(ctx, token, ""); err != nil {
		return nil, err
	}
	if err := s.verifyToken(ctx, token); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := &models.Entry{
		ID:        nuts.NID("entry", 12),
		Name:      name,
		APIToken:  token,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Entries.Create(ctx, entry); err != nil {
		return nil, err
	}
	nuts.L.Infof("[Bridge] Entry %s (%s) created", entry.Name, entry.ID)

	s.start(ctx, entry, nil)
	return s.status(entry), nil
}

// ReconfigureEntry changes name and optionally token of an entry and reloads it
func (s *Service) ReconfigureEntry(ctx context.Context, id string, in ReconfigureInput) (*models.EntryStatus, error) {
	entry, err := s.Entries.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, entryNotFound(id)
		}
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	token := entry.APIToken
	if in.Token != nil {
		token = strings.TrimSpace(*in.Token)
	}

	if name == "" {
		return nil, fieldError("name", "empty_name", nil)
	}
	if token == "" {
		return nil, fieldError("api_token", "empty_token", nil)
	}
	if err := s.checkName(ctx, name, entry.ID); err != nil {
		return nil, err
	}

	tokenChanged := token != entry.APIToken
	if tokenChanged {
		if err := s.checkToken(ctx, token, entry.ID); err != nil {
			return nil, err
		}
		if err := s.verifyToken(ctx, token); err != nil {
			return nil, err
		}
	}

	updated := *entry
	updated.Name = name
	updated.APIToken = token
	updated.UpdatedAt = time.Now().UTC()
	if err := s.Entries.Update(ctx, &updated); err != nil {
		return nil, err
	}

	if tokenChanged {
		if _, err := s.Issues.DismissEntry(ctx, entry.ID); err != nil {
			nuts.L.Errorf("[Bridge] Failed to dismiss issues of %s: %v", entry.ID, err)
		}
	}

	// reload
	old := s.detach(entry.ID)
	var seed *models.Snapshot
	if old != nil {
		seed = old.coord.Snapshot()
	}
	s.start(ctx, &updated, seed)
	if old != nil {
		s.dropStale(ctx, old)
	}
	nuts.L.Infof("[Bridge] Entry %s reconfigured (token changed: %v)", entry.ID, tokenChanged)
	return s.status(&updated), nil
}

// DeleteEntry stops the runtime, removes the entry's entities and deletes
// all stored data of the entry
func (s *Service) DeleteEntry(ctx context.Context, id string) error {
	if _, err := s.Entries.Get(ctx, id); err != nil {
		if errors.IsNotFound(err) {
			return entryNotFound(id)
		}
		return err
	}
	if rt := s.detach(id); rt != nil {
		rt.publisher.RemoveAll(ctx)
	}
	return s.Cleanup.DeleteEntry(ctx, id)
}

// List returns the status of every stored entry
func (s *Service) List(ctx context.Context) ([]*models.EntryStatus, error) {
	entries, err := s.Entries.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.EntryStatus, 0, len(entries))
	for _, entry := range entries {
		out = append(out, s.status(entry))
	}
	return out, nil
}

// Get returns the status of one entry
func (s *Service) Get(ctx context.Context, id string) (*models.EntryStatus, error) {
	entry, err := s.Entries.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, entryNotFound(id)
		}
		return nil, err
	}
	return s.status(entry), nil
}

// Refresh forces a refresh cycle of an entry
func (s *Service) Refresh(ctx context.Context, id string) (*models.Snapshot, error) {
	rt := s.runtime(id)
	if rt == nil {
		return nil, entryNotFound(id)
	}
	return rt.coord.Refresh(ctx)
}

// Snapshot returns the current snapshot of an entry and the sensor states
// derived from it
func (s *Service) Snapshot(id string) (*SnapshotView, error) {
	rt := s.runtime(id)
	if rt == nil {
		return nil, entryNotFound(id)
	}
	snap := rt.coord.Snapshot()
	view := &SnapshotView{Snapshot: snap, Sensors: []models.SensorState{}, LastUpdateSuccess: rt.coord.LastUpdateSuccess()}
	if snap == nil {
		return view, nil
	}
	states := sensors.Build(snap, s.registry)
	if !view.LastUpdateSuccess {
		states = sensors.Unavailable(states)
	}
	view.Sensors = states
	return view, nil
}

// start creates the runtime of an entry, runs the first refresh and starts
// the refresh loop. A seed snapshot keeps the previous entities around as
// unavailable when that refresh fails.
func (s *Service) start(ctx context.Context, entry *models.Entry, seed *models.Snapshot) {
	rt := s.newRuntime(entry)
	if seed != nil {
		rt.coord.Seed(seed)
	}
	if _, err := rt.coord.Refresh(ctx); err != nil {
		nuts.L.Warnf("[Bridge] First refresh of %s failed: %v", entry.ID, err)
	}
	s.launch(rt, false)
}

// dropStale removes entities the old runtime published that the new one did not
func (s *Service) dropStale(ctx context.Context, old *runtime) {
	current := make(map[string]bool)
	if rt := s.runtime(old.entry.ID); rt != nil {
		for _, st := range rt.publisher.States() {
			current[st.UniqueID] = true
		}
	}
	for _, st := range old.publisher.States() {
		if current[st.UniqueID] {
			continue
		}
		if err := s.states.DeleteState(ctx, st.EntityID); err != nil {
			nuts.L.Warnf("[Bridge] Failed to remove %s: %v", st.EntityID, err)
			continue
		}
		s.registry.Release(st.UniqueID)
	}
}

func (s *Service) status(entry *models.Entry) *models.EntryStatus {
	st := &models.EntryStatus{Entry: entry}
	rt := s.runtime(entry.ID)
	if rt == nil {
		return st
	}
	st.Running = true
	st.LastUpdateSuccess = rt.coord.LastUpdateSuccess()
	if snap := rt.coord.Snapshot(); snap != nil {
		st.DeviceCount = len(snap.Devices)
	}
	if at := rt.coord.LastAttempt(); !at.IsZero() {
		st.LastRefreshedAt = &at
	}
	if err := rt.coord.LastError(); err != nil {
		st.LastError = err.Error()
	}
	st.ReauthRequired = rt.coord.IsAuthFailure()
	return st
}

// checkName rejects a name already used by another entry
func (s *Service) checkName(ctx context.Context, name, self string) error {
	existing, err := s.Entries.GetByName(ctx, name)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID == self {
		return nil
	}
	return fieldError("name", "name_already_exists", map[string]string{"name": name})
}

// checkToken rejects a token another entry is already configured with
func (s *Service) checkToken(ctx context.Context, token, self string) error {
	existing, err := s.Entries.GetByToken(ctx, token)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID == self {
		return nil
	}
	return fieldError("api_token", "already_configured", nil)
}

// verifyToken lists the account's devices once to check the token
func (s *Service) verifyToken(ctx context.Context, token string) error {
	client := energytracker.NewClient(energytracker.Config{
		BaseURL: s.cfg.BaseURL,
		Token:   token,
		Timeout: s.cfg.RequestTimeout,
	})
	if _, err := client.ListDevices(ctx); err != nil {
		if errors.IsAuth(err) {
			return fieldError("api_token", "invalid_auth", nil)
		}
		return errors.NewUnavailableError("cannot connect to Energy Tracker", err).
			WithKey("cannot_connect", nil)
	}
	return nil
}
