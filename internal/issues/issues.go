// FilePath: internal/issues/issues.go
package issues

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"
)

const (
	KeyInvalidToken            = "auth_error_invalid_token"
	KeyInsufficientPermissions = "auth_error_insufficient_permissions"

	keyPrefix = "etb:"
	allIssues = keyPrefix + "issues"
)

// Notifier mirrors open issues into Home Assistant
type Notifier interface {
	CreateNotification(ctx context.Context, id, title, message string) error
	DismissNotification(ctx context.Context, id string) error
}

// Store keeps repair issues in Redis. Each issue is a JSON value under
// etb:issue:<id>, indexed by the global set etb:issues and by the
// per-entry set etb:entry:<entryID>:issues.
type Store struct {
	rdb      redis.UniversalClient
	notifier Notifier
	locale   string
	now      func() time.Time
}

func NewStore(rdb redis.UniversalClient, notifier Notifier, locale string) *Store {
	if locale == "" {
		locale = errors.DefaultLocale
	}
	return &Store{rdb: rdb, notifier: notifier, locale: locale, now: time.Now}
}

func issueKey(id string) string {
	return keyPrefix + "issue:" + id
}

func entryKey(entryID string) string {
	return keyPrefix + "entry:" + entryID + ":issues"
}

// AuthIssueID builds the id of the issue raised for a rejected token. The
// token prefix keeps issues of different tokens for the same entry apart.
func AuthIssueID(entry *models.Entry, upstreamStatus int) string {
	return fmt.Sprintf("auth_error_%d_%s", upstreamStatus, entry.TokenPrefix())
}

func translationKey(upstreamStatus int) string {
	if upstreamStatus == http.StatusForbidden {
		return KeyInsufficientPermissions
	}
	return KeyInvalidToken
}

// RaiseAuthIssue records that the API rejected the entry's token. Raising an
// issue that is already open is a no-op.
func (s *Store) RaiseAuthIssue(ctx context.Context, entry *models.Entry, upstreamStatus int) error {
	if upstreamStatus == 0 {
		upstreamStatus = http.StatusUnauthorized
	}
	id := AuthIssueID(entry, upstreamStatus)
	key := translationKey(upstreamStatus)
	text := errors.LocalizeIssue(s.locale, key, map[string]string{"name": entry.Name})

	issue := models.Issue{
		ID:             id,
		EntryID:        entry.ID,
		TranslationKey: key,
		Severity:       models.SeverityError,
		IsFixable:      false,
		UpstreamStatus: upstreamStatus,
		Title:          text.Title,
		Description:    text.Description,
		CreatedAt:      s.now().UTC(),
	}
	data, err := json.Marshal(issue)
	if err != nil {
		return errors.NewInternalError("failed to encode issue", err)
	}

	// the index is written on every raise so a stored issue is never left unlisted
	pipe := s.rdb.TxPipeline()
	setNX := pipe.SetNX(ctx, issueKey(id), data, 0)
	pipe.SAdd(ctx, allIssues, id)
	pipe.SAdd(ctx, entryKey(entry.ID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewUnavailableError("failed to store issue", err)
	}
	if !setNX.Val() {
		return nil
	}

	nuts.L.Warnf("[Issues] Raised %s for entry %s (%s)", id, entry.ID, key)
	if s.notifier != nil {
		if err := s.notifier.CreateNotification(ctx, id, issue.Title, issue.Description); err != nil {
			nuts.L.Errorf("[Issues] Failed to notify Home Assistant about %s: %v", id, err)
		}
	}
	return nil
}

// DismissEntry removes every open issue of an entry and returns how many
// were removed
func (s *Store) DismissEntry(ctx context.Context, entryID string) (int, error) {
	ids, err := s.rdb.SMembers(ctx, entryKey(entryID)).Result()
	if err != nil {
		return 0, errors.NewUnavailableError("failed to read issues", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, issueKey(id))
		pipe.SRem(ctx, allIssues, id)
	}
	pipe.Del(ctx, entryKey(entryID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.NewUnavailableError("failed to dismiss issues", err)
	}

	if s.notifier != nil {
		for _, id := range ids {
			if err := s.notifier.DismissNotification(ctx, id); err != nil {
				nuts.L.Errorf("[Issues] Failed to dismiss notification %s: %v", id, err)
			}
		}
	}
	nuts.L.Infof("[Issues] Dismissed %d issue(s) of entry %s", len(ids), entryID)
	return len(ids), nil
}

// List returns all open issues, oldest first
func (s *Store) List(ctx context.Context) ([]models.Issue, error) {
	ids, err := s.rdb.SMembers(ctx, allIssues).Result()
	if err != nil {
		return nil, errors.NewUnavailableError("failed to read issues", err)
	}
	return s.load(ctx, ids)
}

// ListEntry returns the open issues of one entry
func (s *Store) ListEntry(ctx context.Context, entryID string) ([]models.Issue, error) {
	ids, err := s.rdb.SMembers(ctx, entryKey(entryID)).Result()
	if err != nil {
		return nil, errors.NewUnavailableError("failed to read issues", err)
	}
	return s.load(ctx, ids)
}

func (s *Store) load(ctx context.Context, ids []string) ([]models.Issue, error) {
	issues := []models.Issue{}
	if len(ids) == 0 {
		return issues, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = issueKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.NewUnavailableError("failed to load issues", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without a value
			continue
		}
		var issue models.Issue
		if err := json.Unmarshal([]byte(raw), &issue); err != nil {
			nuts.L.Warnf("[Issues] Skipping unreadable issue %s: %v", ids[i], err)
			continue
		}
		issues = append(issues, issue)
	}
	sort.Slice(issues, func(i, j int) bool {
		if !issues[i].CreatedAt.Equal(issues[j].CreatedAt) {
			return issues[i].CreatedAt.Before(issues[j].CreatedAt)
		}
		return issues[i].ID < issues[j].ID
	})
	return issues, nil
}
