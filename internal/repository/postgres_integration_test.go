//go:build integration

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"wxstats/internal/models"
	"wxstats/internal/repository"
	"wxstats/internal/testutil"
	"wxstats/pkg/database"
)

func newPostgresRepo(t *testing.T) repository.WeatherRepository {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("weather"),
		postgres.WithUsername("wx"),
		postgres.WithPassword("wx"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := testutil.Logger()
	m := testutil.Metrics()
	db, err := database.Open(&database.Config{
		Driver:       "postgres",
		DSN:          dsn,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
	}, logger, m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewWeatherRepository(db, logger, m)
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func TestPostgres_InsertIfAbsentAndUpsert(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()

	outcome, err := repo.CreateStation(ctx, "USC00110072")
	require.NoError(t, err)
	assert.Equal(t, repository.Inserted, outcome)
	outcome, err = repo.CreateStation(ctx, "USC00110072")
	require.NoError(t, err)
	assert.Equal(t, repository.AlreadyPresent, outcome)

	st, err := repo.GetStationByCode(ctx, "USC00110072")
	require.NoError(t, err)

	rec := &models.WeatherRecord{StationID: st.ID, Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), MaxTempC: f(10)}
	outcome, err = repo.InsertObservation(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, repository.Inserted, outcome)
	outcome, err = repo.InsertObservation(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, repository.AlreadyPresent, outcome)

	var seen int
	require.NoError(t, repo.ForEachRecord(ctx, &repository.RecordScope{StationID: st.ID, Year: 2020}, func(r *models.WeatherRecord) error {
		seen++
		assert.Equal(t, "2020-01-01", models.SQLDate(r.Date))
		return nil
	}))
	assert.Equal(t, 1, seen)

	require.NoError(t, repo.UpsertYearlyStat(ctx, &models.YearlyStat{StationID: st.ID, Year: 2020, AvgMaxTempC: f(10)}))
	require.NoError(t, repo.UpsertYearlyStat(ctx, &models.YearlyStat{StationID: st.ID, Year: 2020, AvgMaxTempC: f(11)}))

	code := "USC00110072"
	rows, total, err := repo.GetStatistics(ctx, repository.StatisticsFilter{StationCode: &code, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 11.0, *rows[0].AvgMaxTempC)

	obs, total, err := repo.GetObservations(ctx, repository.ObservationFilter{StationCode: &code, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "2020-01-01", models.SQLDate(obs[0].Date.Time))
}
