package tasks_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasklist/internal/api"
	"tasklist/internal/backend/rest"
	"tasklist/internal/service"
	"tasklist/internal/session"
	"tasklist/internal/tasks"
	"tasklist/internal/testutil"
)

const email = "a@x.com"

func setup(t *testing.T, policy tasks.Policy) (*testutil.FakeServer, *tasks.Repository, *session.Store) {
	t.Helper()
	fake := testutil.NewFakeServer(t)
	fake.AddUser(email, "secret")
	access, refresh := fake.IssueTokens(email)

	store := session.NewMemoryStore()
	require.NoError(t, store.SetSession(context.Background(), session.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		Email:        email,
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := api.NewClient(store, api.WithBaseURL(fake.BaseURL()), api.WithLogger(logger))
	t.Cleanup(c.Close)
	return fake, tasks.NewRepository(rest.New(c), policy, logger), store
}

func TestCreate_ReturnsServerCopy(t *testing.T) {
	fake, repo, _ := setup(t, tasks.DefaultPolicy)

	task, err := repo.Create(context.Background(), "  Buy milk  ")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "Buy milk", task.Text)
	assert.False(t, task.Completed)

	stored := fake.Tasks(email)
	require.Len(t, stored, 1)
	assert.Equal(t, stored[0].ID, task.ID)
	assert.Equal(t, stored[0].Text, task.Text)
}

func TestCreate_EmptyTextRejectedBeforeCall(t *testing.T) {
	for _, policy := range []tasks.Policy{{DegradeOnFailure: true}, {DegradeOnFailure: false}} {
		fake, repo, _ := setup(t, policy)

		task, err := repo.Create(context.Background(), "   ")
		require.ErrorIs(t, err, service.ErrInvalid)
		assert.Nil(t, task)
		assert.Zero(t, fake.Calls("POST /api/tasks/{$}"))
	}
}

func TestList(t *testing.T) {
	fake, repo, _ := setup(t, tasks.DefaultPolicy)
	fake.AddTask(email, "1", "Buy milk", false)
	fake.AddTask(email, "2", "Walk dog", true)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, "2", list[1].ID)
}

func TestToggle(t *testing.T) {
	fake, repo, _ := setup(t, tasks.DefaultPolicy)
	fake.AddTask(email, "1", "Buy milk", false)

	ok, err := repo.Toggle(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, fake.Tasks(email)[0].Completed)
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	fake, repo, _ := setup(t, tasks.DefaultPolicy)
	fake.AddTask(email, "1", "Buy milk", false)

	text := " Buy oat milk "
	task, err := repo.Update(ctx, "1", service.TaskUpdate{Text: &text})
	require.NoError(t, err)
	assert.Equal(t, "Buy oat milk", task.Text)

	require.NoError(t, repo.Delete(ctx, "1"))
	assert.Empty(t, fake.Tasks(email))
}

func TestUpdate_InvalidText(t *testing.T) {
	fake, repo, _ := setup(t, tasks.DefaultPolicy)
	fake.AddTask(email, "1", "Buy milk", false)

	empty := ""
	_, err := repo.Update(context.Background(), "1", service.TaskUpdate{Text: &empty})
	require.ErrorIs(t, err, service.ErrInvalid)
	assert.Zero(t, fake.Calls("PUT /api/tasks/{id}"))
}

func TestDegrade_Unreachable(t *testing.T) {
	ctx := context.Background()
	fake, repo, _ := setup(t, tasks.DefaultPolicy)
	fake.Close()

	ok, err := repo.Toggle(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	task, err := repo.Create(ctx, "Buy milk")
	require.NoError(t, err)
	assert.Nil(t, task)

	// update and delete always propagate
	text := "x"
	_, err = repo.Update(ctx, "1", service.TaskUpdate{Text: &text})
	assert.ErrorIs(t, err, api.ErrNetwork)
	assert.ErrorIs(t, repo.Delete(ctx, "1"), api.ErrNetwork)
}

func TestNoDegrade_Propagates(t *testing.T) {
	ctx := context.Background()
	fake, repo, _ := setup(t, tasks.Policy{DegradeOnFailure: false})
	fake.Fail("GET /api/tasks/{$}", 500)
	fake.Fail("POST /api/tasks/{$}", 500)
	fake.Fail("PATCH /api/tasks/{id}/toggle", 500)

	_, err := repo.List(ctx)
	assert.ErrorIs(t, err, api.ErrRequest)

	_, err = repo.Create(ctx, "Buy milk")
	assert.ErrorIs(t, err, api.ErrRequest)

	ok, err := repo.Toggle(ctx, "1")
	assert.False(t, ok)
	var reqErr *api.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, 500, reqErr.Status)
}

func TestDegrade_ExpiredSessionIsCleared(t *testing.T) {
	ctx := context.Background()
	fake, repo, store := setup(t, tasks.DefaultPolicy)
	fake.AddTask(email, "1", "Buy milk", false)
	fake.ExpireAccessTokens()
	fake.RevokeRefreshTokens()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	access, err := store.Get(ctx, session.KindAccess)
	require.NoError(t, err)
	assert.Empty(t, access, "auth failure still clears the session")
}

func TestFetch_ReportsFailureUnderDegradePolicy(t *testing.T) {
	ctx := context.Background()
	fake, repo, _ := setup(t, tasks.DefaultPolicy)
	fake.AddTask(email, "1", "Buy milk", false)

	list, err := repo.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	fake.Fail("GET /api/tasks/{$}", 503)
	list, err = repo.Fetch(ctx)
	assert.ErrorIs(t, err, api.ErrRequest)
	assert.Nil(t, list)

	// List keeps degrading
	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
