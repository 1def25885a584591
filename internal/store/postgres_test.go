package store_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/datatops/datatops/internal/store"
)

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("datatops_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, store.RunMigrations(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func TestPostgresStore_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	p := testProject("sensors")
	require.NoError(t, s.CreateProject(ctx, p))

	got, err := s.GetProject(ctx, "sensors")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.UserKey, got.UserKey)
	assert.Equal(t, p.AdminKey, got.AdminKey)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
}

func TestPostgresStore_CreateDuplicate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	first := testProject("sensors")
	require.NoError(t, s.CreateProject(ctx, first))

	second := testProject("sensors")
	second.UserKey = "other-user-key"
	err := s.CreateProject(ctx, second)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := s.GetProject(ctx, "sensors")
	require.NoError(t, err)
	assert.Equal(t, first.UserKey, got.UserKey)
}

func TestPostgresStore_GetUnknown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	_, err := s.GetProject(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresStore_AppendAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	require.NoError(t, s.CreateProject(ctx, testProject("sensors")))

	payloads := []string{`{"n":1}`, `{"n":2}`, `"bare string"`, `[1,2,3]`}
	for _, p := range payloads {
		rec, err := s.AppendRecord(ctx, "sensors", json.RawMessage(p))
		require.NoError(t, err)
		assert.False(t, rec.StoredAt.IsZero())
	}

	records, err := s.ListRecords(ctx, "sensors", 0)
	require.NoError(t, err)
	require.Len(t, records, len(payloads))
	for i, rec := range records {
		assert.JSONEq(t, payloads[i], string(rec.Payload))
	}
}

func TestPostgresStore_AppendToUnknown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	_, err := s.AppendRecord(context.Background(), "missing", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresStore_ListRecordsLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	require.NoError(t, s.CreateProject(ctx, testProject("sensors")))

	for i := 0; i < 5; i++ {
		_, err := s.AppendRecord(ctx, "sensors", json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
		require.NoError(t, err)
	}

	records, err := s.ListRecords(ctx, "sensors", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"n":0}`, string(records[0].Payload))
	assert.JSONEq(t, `{"n":1}`, string(records[1].Payload))
}

func TestPostgresStore_ListProjects(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	for _, n := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, s.CreateProject(ctx, testProject(n)))
	}

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, "alpha", projects[0].Name)
}

func TestPostgresStore_Ping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	assert.NoError(t, s.Ping(context.Background()))
}
