package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/migration"
	"github.com/erp/catalogsync/migrations"
)

// newPostgresDatabase starts PostgreSQL and applies the SQL migrations, so
// the repositories run against the production schema rather than one
// derived from the models.
func newPostgresDatabase(t *testing.T) *Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("catalogsync_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db, err := NewDatabase(&config.DatabaseConfig{
		Driver:       DriverPostgres,
		Host:         host,
		Port:         port.Int(),
		User:         "postgres",
		Password:     "postgres",
		DBName:       "catalogsync_test",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.SQLDB()
	require.NoError(t, err)
	m, err := migration.NewEmbedded(sqlDB, migrations.FS, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())
	return db
}

func TestPostgres_CatalogRoundTrip(t *testing.T) {
	db := newPostgresDatabase(t)
	repo := NewGormCatalogRepository(db.DB)
	ctx := context.Background()

	require.NoError(t, repo.SaveStoreRefs(ctx, productsync.StoreRefs{SalesChannelID: "sc_1", ShippingProfileID: "sp_1"}))
	refs, err := repo.StoreRefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sc_1", refs.SalesChannelID)

	created, err := repo.CreateProducts(ctx, []productsync.DomainProduct{shirt()})
	require.NoError(t, err)
	require.Len(t, created, 1)

	update := shirt()
	update.ID = created[0].ID
	update.Title = "T-Shirt v2"
	update.Variants = update.Variants[:1]
	update.Variants[0].ID = created[0].Variants[0].ID
	updated, err := repo.UpdateProducts(ctx, []productsync.DomainProduct{update})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, created[0].ID, updated[0].ID)

	p, err := repo.ProductByHandle(ctx, "t-shirt-11")
	require.NoError(t, err)
	assert.Equal(t, "T-Shirt v2", p.Title)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, created[0].Variants[0].ID, p.Variants[0].ID)
}

func TestPostgres_SyncRunRoundTrip(t *testing.T) {
	db := newPostgresDatabase(t)
	repo := NewGormSyncRunRepository(db.DB)
	ctx := context.Background()

	run := productsync.NewRun(productsync.TriggerManual, 50)
	require.NoError(t, repo.Save(ctx, run))

	got, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, productsync.TriggerManual, got.Trigger)
	assert.Equal(t, 50, got.PageSize)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
}
