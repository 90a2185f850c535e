package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wxstats/internal/models"
	"wxstats/internal/repository"
	"wxstats/internal/testutil"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func f(v float64) *float64 { return &v }

func mustStation(t *testing.T, repo repository.WeatherRepository, code string) *models.Station {
	t.Helper()
	ctx := context.Background()
	_, err := repo.CreateStation(ctx, code)
	require.NoError(t, err)
	st, err := repo.GetStationByCode(ctx, code)
	require.NoError(t, err)
	return st
}

func TestCreateStation_InsertIfAbsent(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	outcome, err := store.Repo.CreateStation(ctx, "USC00110072")
	require.NoError(t, err)
	assert.Equal(t, repository.Inserted, outcome)

	outcome, err = store.Repo.CreateStation(ctx, "USC00110072")
	require.NoError(t, err)
	assert.Equal(t, repository.AlreadyPresent, outcome)

	st, err := store.Repo.GetStationByCode(ctx, "USC00110072")
	require.NoError(t, err)
	assert.NotZero(t, st.ID)
	assert.Equal(t, "USC00110072", st.Code)
	assert.Nil(t, st.State)
	assert.Nil(t, st.Name)

	stations, total, err := store.Repo.ListStations(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, stations, 1)
}

func TestGetStationByCode_NotFound(t *testing.T) {
	store := testutil.NewStore(t)

	_, err := store.Repo.GetStationByCode(context.Background(), "NOPE")

	require.Error(t, err)
	assert.True(t, repository.IsNotFound(err))
	assert.False(t, repository.IsNotFound(errors.New("other")))
}

func TestInsertObservation_UniquePerStationDate(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	a := mustStation(t, store.Repo, "A")
	b := mustStation(t, store.Repo, "B")

	rec := &models.WeatherRecord{StationID: a.ID, Date: day(2020, 1, 1), MaxTempC: f(10), MinTempC: f(0)}

	outcome, err := store.Repo.InsertObservation(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, repository.Inserted, outcome)

	// same key with different values is discarded, not merged
	dup := &models.WeatherRecord{StationID: a.ID, Date: day(2020, 1, 1), MaxTempC: f(99)}
	outcome, err = store.Repo.InsertObservation(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, repository.AlreadyPresent, outcome)

	// same date, other station is a distinct key
	outcome, err = store.Repo.InsertObservation(ctx, &models.WeatherRecord{StationID: b.ID, Date: day(2020, 1, 1)})
	require.NoError(t, err)
	assert.Equal(t, repository.Inserted, outcome)

	n, err := store.Repo.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var got []*models.WeatherRecord
	require.NoError(t, store.Repo.ForEachRecord(ctx, nil, func(r *models.WeatherRecord) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].StationID)
	assert.True(t, day(2020, 1, 1).Equal(got[0].Date))
	require.NotNil(t, got[0].MaxTempC)
	assert.Equal(t, 10.0, *got[0].MaxTempC)
	assert.Nil(t, got[1].MaxTempC)
}

func TestForEachRecord_ScopeAndOrder(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	a := mustStation(t, store.Repo, "A")
	b := mustStation(t, store.Repo, "B")

	for _, rec := range []*models.WeatherRecord{
		{StationID: a.ID, Date: day(2021, 1, 1)},
		{StationID: a.ID, Date: day(2020, 12, 31)},
		{StationID: a.ID, Date: day(2020, 1, 1)},
		{StationID: b.ID, Date: day(2020, 6, 1)},
	} {
		_, err := store.Repo.InsertObservation(ctx, rec)
		require.NoError(t, err)
	}

	var dates []string
	require.NoError(t, store.Repo.ForEachRecord(ctx, &repository.RecordScope{StationID: a.ID, Year: 2020}, func(r *models.WeatherRecord) error {
		dates = append(dates, models.SQLDate(r.Date))
		return nil
	}))
	assert.Equal(t, []string{"2020-01-01", "2020-12-31"}, dates)

	stop := errors.New("stop")
	err := store.Repo.ForEachRecord(ctx, nil, func(*models.WeatherRecord) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestUpsertYearlyStat_Replaces(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	a := mustStation(t, store.Repo, "A")

	require.NoError(t, store.Repo.UpsertYearlyStat(ctx, &models.YearlyStat{
		StationID: a.ID, Year: 2020, AvgMaxTempC: f(15), AvgMinTempC: f(1), TotalPrecipCm: f(3),
	}))
	first, err := store.Repo.GetYearlyStat(ctx, a.ID, 2020)
	require.NoError(t, err)

	require.NoError(t, store.Repo.UpsertYearlyStat(ctx, &models.YearlyStat{
		StationID: a.ID, Year: 2020, AvgMaxTempC: f(16),
	}))

	got, err := store.Repo.GetYearlyStat(ctx, a.ID, 2020)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, 16.0, *got.AvgMaxTempC)
	assert.Nil(t, got.AvgMinTempC)
	assert.Nil(t, got.TotalPrecipCm)

	all, err := store.Repo.ListYearlyStats(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = store.Repo.GetYearlyStat(ctx, a.ID, 1999)
	assert.True(t, repository.IsNotFound(err))
}

func TestGetObservations_FiltersAndPagination(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	a := mustStation(t, store.Repo, "A")
	b := mustStation(t, store.Repo, "B")

	for i := 1; i <= 5; i++ {
		_, err := store.Repo.InsertObservation(ctx, &models.WeatherRecord{StationID: a.ID, Date: day(2020, 1, i), MaxTempC: f(float64(i))})
		require.NoError(t, err)
	}
	_, err := store.Repo.InsertObservation(ctx, &models.WeatherRecord{StationID: b.ID, Date: day(2020, 1, 3)})
	require.NoError(t, err)

	code := "A"
	from, to := day(2020, 1, 2), day(2020, 1, 4)
	rows, total, err := store.Repo.GetObservations(ctx, repository.ObservationFilter{
		StationCode: &code, DateFrom: &from, DateTo: &to, Limit: 2, Offset: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].StationCode)
	assert.Equal(t, "2020-01-03", models.SQLDate(rows[0].Date.Time))
	assert.Equal(t, 3.0, *rows[0].MaxTempC)
	assert.Equal(t, "2020-01-04", models.SQLDate(rows[1].Date.Time))

	rows, total, err = store.Repo.GetObservations(ctx, repository.ObservationFilter{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, rows, 6)
}

func TestGetStatistics_Filters(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	a := mustStation(t, store.Repo, "A")
	b := mustStation(t, store.Repo, "B")

	for _, s := range []*models.YearlyStat{
		{StationID: a.ID, Year: 2019, AvgMaxTempC: f(1)},
		{StationID: a.ID, Year: 2020, AvgMaxTempC: f(2)},
		{StationID: b.ID, Year: 2020, AvgMaxTempC: f(3)},
	} {
		require.NoError(t, store.Repo.UpsertYearlyStat(ctx, s))
	}

	year := 2020
	rows, total, err := store.Repo.GetStatistics(ctx, repository.StatisticsFilter{Year: &year, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].StationCode)
	assert.Equal(t, "B", rows[1].StationCode)

	code := "A"
	rows, total, err = store.Repo.GetStatistics(ctx, repository.StatisticsFilter{StationCode: &code, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2019, rows[0].Year)
	assert.Equal(t, 2020, rows[1].Year)
}

func TestInsertOutcome_String(t *testing.T) {
	assert.Equal(t, "inserted", repository.Inserted.String())
	assert.Equal(t, "already_present", repository.AlreadyPresent.String())
}
