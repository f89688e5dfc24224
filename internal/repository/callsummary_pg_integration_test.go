//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/GoPolymarket/apilogs/internal/config"
	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *config.Config {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "apilogs",
				"POSTGRES_PASSWORD": "apilogs",
				"POSTGRES_DB":       "apilogs",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	}
	pg, err := testcontainers.GenericContainer(ctx, req)
	testcontainers.CleanupContainer(t, pg)
	require.NoError(t, err)

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Database.DSN = fmt.Sprintf("postgres://apilogs:apilogs@%s:%s/apilogs?sslmode=disable", host, port.Port())
	return cfg
}

func TestPostgresCallStore(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()

	db, err := NewDB(cfg)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db))
	require.NoError(t, db.Exec(`CREATE TABLE users (id BIGSERIAL PRIMARY KEY, name TEXT)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO users (id, name) VALUES (1, 'alice'), (2, 'bob')`).Error)

	store := NewPostgresCallStore(db)

	first := t0.Add(100 * time.Millisecond)
	id, err := store.UpsertCallSummary(ctx, completedSummary("req-1", 201, first))
	require.NoError(t, err)
	again, err := store.UpsertCallSummary(ctx, completedSummary("req-1", 500, t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	got, err := store.GetCallSummary(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, 201, *got.ResponseStatus)
	assert.True(t, got.ResponseAt.Equal(first))
	assert.False(t, got.IsError)

	rows := []model.Association{
		{CallSummaryID: id, EntityType: "User", EntityID: "1"},
		{CallSummaryID: id, EntityType: "Order", EntityID: "2"},
	}
	require.NoError(t, store.BulkUpsertAssociations(ctx, rows))
	require.NoError(t, store.BulkUpsertAssociations(ctx, []model.Association{
		{CallSummaryID: id, EntityType: "User", EntityID: "1"},
	}))
	got, err = store.GetCallSummary(ctx, "req-1")
	require.NoError(t, err)
	assert.Len(t, got.Entities, 2)

	finder := NewTableFinder(db, "users", "id")
	existing, err := finder.ExistingIDs(ctx, []string{"1", "2", "99"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, existing)

	list, err := store.ListCallSummaries(ctx, model.CallFilter{Method: "POST"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := store.Prune(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = store.GetCallSummary(ctx, "req-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
