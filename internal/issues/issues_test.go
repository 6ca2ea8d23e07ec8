package issues

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/itsatony/etbridge/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	created   []string
	titles    []string
	dismissed []string
}

func (f *fakeNotifier) CreateNotification(_ context.Context, id, title, _ string) error {
	f.created = append(f.created, id)
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeNotifier) DismissNotification(_ context.Context, id string) error {
	f.dismissed = append(f.dismissed, id)
	return nil
}

func newTestStore(t *testing.T, locale string) (*Store, *fakeNotifier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	notifier := &fakeNotifier{}
	store := NewStore(rdb, notifier, locale)
	tick := time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return store, notifier, mr
}

var home = &models.Entry{ID: "entry-1", Name: "Home", APIToken: "abcdefgh-rest-of-token"}

func TestRaiseAuthIssue(t *testing.T) {
	ctx := context.Background()
	store, notifier, mr := newTestStore(t, "en")

	require.NoError(t, store.RaiseAuthIssue(ctx, home, 401))

	issues, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	issue := issues[0]
	assert.Equal(t, "auth_error_401_abcdefgh", issue.ID)
	assert.Equal(t, KeyInvalidToken, issue.TranslationKey)
	assert.Equal(t, models.SeverityError, issue.Severity)
	assert.False(t, issue.IsFixable)
	assert.Equal(t, "entry-1", issue.EntryID)
	assert.Contains(t, issue.Description, "Home")

	assert.Equal(t, []string{"auth_error_401_abcdefgh"}, notifier.created)
	assert.True(t, mr.Exists("etb:issue:auth_error_401_abcdefgh"))
}

func TestRaiseForbiddenUsesPermissionKey(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t, "en")

	require.NoError(t, store.RaiseAuthIssue(ctx, home, 403))
	issues, err := store.ListEntry(ctx, "entry-1")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "auth_error_403_abcdefgh", issues[0].ID)
	assert.Equal(t, KeyInsufficientPermissions, issues[0].TranslationKey)
}

func TestRaiseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, notifier, _ := newTestStore(t, "en")

	require.NoError(t, store.RaiseAuthIssue(ctx, home, 401))
	require.NoError(t, store.RaiseAuthIssue(ctx, home, 401))

	issues, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, 1)
	assert.Len(t, notifier.created, 1)
}

func TestRaiseReindexesStoredIssue(t *testing.T) {
	ctx := context.Background()
	store, notifier, mr := newTestStore(t, "en")

	require.NoError(t, store.RaiseAuthIssue(ctx, home, 401))
	mr.SRem("etb:issues", "auth_error_401_abcdefgh")
	mr.Del("etb:entry:entry-1:issues")

	issues, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)

	require.NoError(t, store.RaiseAuthIssue(ctx, home, 401))
	issues, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "auth_error_401_abcdefgh", issues[0].ID)

	issues, err = store.ListEntry(ctx, "entry-1")
	require.NoError(t, err)
	assert.Len(t, issues, 1)
	assert.Len(t, notifier.created, 1)
}

func TestDismissEntry(t *testing.T) {
	ctx := context.Background()
	store, notifier, _ := newTestStore(t, "en")
	other := &models.Entry{ID: "entry-2", Name: "Cabin", APIToken: "zzzzzzzz"}

	require.NoError(t, store.RaiseAuthIssue(ctx, home, 401))
	require.NoError(t, store.RaiseAuthIssue(ctx, home, 403))
	require.NoError(t, store.RaiseAuthIssue(ctx, other, 401))

	n, err := store.DismissEntry(ctx, "entry-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"auth_error_401_abcdefgh", "auth_error_403_abcdefgh"}, notifier.dismissed)

	issues, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "entry-2", issues[0].EntryID)

	n, err = store.DismissEntry(ctx, "entry-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListIsOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t, "en")

	require.NoError(t, store.RaiseAuthIssue(ctx, home, 403))
	require.NoError(t, store.RaiseAuthIssue(ctx, home, 401))

	issues, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "auth_error_403_abcdefgh", issues[0].ID)
	assert.Equal(t, "auth_error_401_abcdefgh", issues[1].ID)
}

func TestGermanIssueText(t *testing.T) {
	ctx := context.Background()
	store, notifier, _ := newTestStore(t, "de")

	require.NoError(t, store.RaiseAuthIssue(ctx, home, 401))
	require.Len(t, notifier.titles, 1)

	issues, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Energy Tracker Zugriffstoken ungültig", issues[0].Title)
	assert.Contains(t, issues[0].Description, "Konto Home")
	assert.Equal(t, issues[0].Title, notifier.titles[0])
}

func TestUnreachableRedis(t *testing.T) {
	ctx := context.Background()
	store, _, mr := newTestStore(t, "en")
	mr.Close()

	assert.Error(t, store.RaiseAuthIssue(ctx, home, 401))
	_, err := store.List(ctx)
	assert.Error(t, err)
}
