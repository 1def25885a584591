package store_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/datatops/datatops/internal/config"
	"github.com/datatops/datatops/internal/store"
)

// setupDynamo spins up a dynamodb-local container and returns a connected
// DynamoStore with both tables created.
func setupDynamo(t *testing.T) *store.DynamoStore {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "amazon/dynamodb-local:2.5.2",
		ExposedPorts: []string{"8000/tcp"},
		WaitingFor:   wait.ForListeningPort("8000/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "8000")
	require.NoError(t, err)

	// dynamodb-local accepts any credentials; the SDK just needs some to sign.
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	s, err := store.NewDynamoStore(ctx, config.DynamoConfig{
		ProjectsTable: "datatops_projects",
		RecordsTable:  "datatops_records",
		Region:        "us-east-1",
		Endpoint:      fmt.Sprintf("http://%s:%s", host, port.Port()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	return s
}

func TestDynamoStore_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupDynamo(t)
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

func TestDynamoStore_CreateDuplicate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupDynamo(t)
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

func TestDynamoStore_GetUnknown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupDynamo(t)

	_, err := s.GetProject(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDynamoStore_AppendAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupDynamo(t)
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
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].StoredAt.Before(records[i-1].StoredAt))
	}
}

func TestDynamoStore_AppendToUnknown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupDynamo(t)

	_, err := s.AppendRecord(context.Background(), "missing", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDynamoStore_ListRecordsLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupDynamo(t)
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

func TestDynamoStore_ListProjects(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupDynamo(t)
	ctx := context.Background()

	for _, n := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, s.CreateProject(ctx, testProject(n)))
	}

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 3)

	seen := make(map[string]bool)
	for _, p := range projects {
		seen[p.Name] = true
	}
	assert.True(t, seen["alpha"] && seen["beta"] && seen["gamma"])
}

func TestDynamoStore_Ping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupDynamo(t)

	assert.NoError(t, s.Ping(context.Background()))
}
