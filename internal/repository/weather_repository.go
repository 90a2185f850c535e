package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"wxstats/internal/models"
	"wxstats/pkg/database"
	"wxstats/pkg/logging"
	"wxstats/pkg/metrics"
)

// InsertOutcome reports what an insert-if-absent did.
type InsertOutcome int

const (
	// Inserted means a new row was written.
	Inserted InsertOutcome = iota
	// AlreadyPresent means a row with the same unique key already existed; nothing was written.
	AlreadyPresent
)

func (o InsertOutcome) String() string {
	if o == AlreadyPresent {
		return "already_present"
	}
	return "inserted"
}

// WeatherRepository provides data access for stations, daily records and yearly stats
type WeatherRepository interface {
	// EnsureSchema applies pending schema migrations.
	EnsureSchema(ctx context.Context) error

	// Station operations
	GetStationByCode(ctx context.Context, code string) (*models.Station, error)
	CreateStation(ctx context.Context, code string) (InsertOutcome, error)
	ListStations(ctx context.Context, limit, offset int) ([]*models.Station, int, error)

	// Record operations
	InsertObservation(ctx context.Context, rec *models.WeatherRecord) (InsertOutcome, error)
	ForEachRecord(ctx context.Context, scope *RecordScope, fn func(*models.WeatherRecord) error) error
	CountRecords(ctx context.Context) (int, error)
	GetObservations(ctx context.Context, filter ObservationFilter) ([]*models.ObservationView, int, error)

	// Statistics operations
	UpsertYearlyStat(ctx context.Context, stat *models.YearlyStat) error
	GetYearlyStat(ctx context.Context, stationID int64, year int) (*models.YearlyStat, error)
	ListYearlyStats(ctx context.Context) ([]*models.YearlyStat, error)
	GetStatistics(ctx context.Context, filter StatisticsFilter) ([]*models.YearlyStatView, int, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// ObservationFilter defines filters for querying daily records
type ObservationFilter struct {
	StationCode *string
	DateFrom    *time.Time
	DateTo      *time.Time
	Limit       int
	Offset      int
}

// StatisticsFilter defines filters for querying yearly stats
type StatisticsFilter struct {
	StationCode *string
	Year        *int
	Limit       int
	Offset      int
}

// RecordScope restricts ForEachRecord to one station-year.
type RecordScope struct {
	StationID int64
	Year      int
}

// weatherRepository implements WeatherRepository
type weatherRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWeatherRepository creates a new weather repository
func NewWeatherRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) WeatherRepository {
	return &weatherRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// EnsureSchema applies pending schema migrations
func (r *weatherRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// GetStationByCode retrieves a station by its external code
func (r *weatherRepository) GetStationByCode(ctx context.Context, code string) (*models.Station, error) {
	query := `
		SELECT id, code, state, name
		FROM stations
		WHERE code = ?
	`

	var station models.Station
	err := r.db.GetContext(ctx, "get_station", &station, query, code)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "station",
			ID:       code,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}

	return &station, nil
}

// CreateStation inserts a station with no metadata unless the code is already taken
func (r *weatherRepository) CreateStation(ctx context.Context, code string) (InsertOutcome, error) {
	query := `
		INSERT INTO stations (code)
		VALUES (?)
		ON CONFLICT (code) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, "insert_station", query, code)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return AlreadyPresent, nil
		}
		return Inserted, fmt.Errorf("failed to create station: %w", err)
	}

	outcome, err := outcomeOf(res)
	if err != nil {
		return Inserted, fmt.Errorf("failed to create station: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_STATION] Station insert attempted", logging.Fields{
		"station_code": code,
		"outcome":      outcome.String(),
	})

	return outcome, nil
}

// ListStations retrieves stations ordered by code with pagination
func (r *weatherRepository) ListStations(ctx context.Context, limit, offset int) ([]*models.Station, int, error) {
	var total int
	if err := r.db.GetContext(ctx, "count_stations", &total, `SELECT COUNT(*) FROM stations`); err != nil {
		return nil, 0, fmt.Errorf("failed to count stations: %w", err)
	}

	query := `
		SELECT id, code, state, name
		FROM stations
		ORDER BY code
		LIMIT ? OFFSET ?
	`

	stations := []*models.Station{}
	if err := r.db.SelectContext(ctx, "list_stations", &stations, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list stations: %w", err)
	}

	return stations, total, nil
}

// InsertObservation stores a daily record unless one exists for the same station and date.
// Each call is its own commit.
func (r *weatherRepository) InsertObservation(ctx context.Context, rec *models.WeatherRecord) (InsertOutcome, error) {
	query := `
		INSERT INTO weather_records (
			station_id, observation_date, max_temp_c, min_temp_c, precip_cm
		)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (station_id, observation_date) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, "insert_record", query,
		rec.StationID,
		models.SQLDate(rec.Date),
		rec.MaxTempC,
		rec.MinTempC,
		rec.PrecipCm,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return AlreadyPresent, nil
		}
		return Inserted, fmt.Errorf("failed to insert record: %w", err)
	}

	outcome, err := outcomeOf(res)
	if err != nil {
		return Inserted, fmt.Errorf("failed to insert record: %w", err)
	}
	return outcome, nil
}

func outcomeOf(res sql.Result) (InsertOutcome, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return Inserted, err
	}
	if n == 0 {
		return AlreadyPresent, nil
	}
	return Inserted, nil
}

// ForEachRecord streams stored records ordered by station and date. A nil
// scope visits the whole table. fn must not issue queries of its own: on
// single-connection stores the cursor holds the connection.
func (r *weatherRepository) ForEachRecord(ctx context.Context, scope *RecordScope, fn func(*models.WeatherRecord) error) error {
	query := `
		SELECT id, station_id, observation_date, max_temp_c, min_temp_c, precip_cm
		FROM weather_records
	`
	var args []interface{}
	if scope != nil {
		query += ` WHERE station_id = ? AND observation_date >= ? AND observation_date < ?`
		args = append(args,
			scope.StationID,
			fmt.Sprintf("%04d-01-01", scope.Year),
			fmt.Sprintf("%04d-01-01", scope.Year+1),
		)
	}
	query += ` ORDER BY station_id, observation_date`

	rows, err := r.db.QueryContext(ctx, "scan_records", query, args...)
	if err != nil {
		return fmt.Errorf("failed to scan records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.WeatherRecord
		if err := rows.StructScan(&rec); err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to scan records: %w", err)
	}
	return nil
}

// CountRecords returns the number of stored daily records
func (r *weatherRepository) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, "count_records", &n, `SELECT COUNT(*) FROM weather_records`); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// GetObservations retrieves daily records joined to their station code with filtering and pagination
func (r *weatherRepository) GetObservations(ctx context.Context, filter ObservationFilter) ([]*models.ObservationView, int, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.StationCode != nil {
		where = append(where, "s.code = ?")
		args = append(args, *filter.StationCode)
	}
	if filter.DateFrom != nil {
		where = append(where, "w.observation_date >= ?")
		args = append(args, models.SQLDate(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		where = append(where, "w.observation_date <= ?")
		args = append(args, models.SQLDate(*filter.DateTo))
	}

	from := `
		FROM weather_records w
		JOIN stations s ON s.id = w.station_id
	` + whereClause(where)

	var total int
	if err := r.db.GetContext(ctx, "count_observations", &total, "SELECT COUNT(*)"+from, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count observations: %w", err)
	}

	query := `
		SELECT s.code AS station_code, w.observation_date,
		       w.max_temp_c, w.min_temp_c, w.precip_cm
	` + from + `
		ORDER BY w.observation_date, s.code
		LIMIT ? OFFSET ?
	`
	args = append(args, filter.Limit, filter.Offset)

	observations := []*models.ObservationView{}
	if err := r.db.SelectContext(ctx, "get_observations", &observations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get observations: %w", err)
	}

	return observations, total, nil
}

// UpsertYearlyStat creates or fully replaces the stats row for (station, year)
func (r *weatherRepository) UpsertYearlyStat(ctx context.Context, stat *models.YearlyStat) error {
	query := `
		INSERT INTO weather_yearly_stats (
			station_id, year, avg_max_temp_c, avg_min_temp_c, total_precip_cm
		)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (station_id, year) DO UPDATE SET
			avg_max_temp_c = EXCLUDED.avg_max_temp_c,
			avg_min_temp_c = EXCLUDED.avg_min_temp_c,
			total_precip_cm = EXCLUDED.total_precip_cm
	`

	_, err := r.db.ExecContext(ctx, "upsert_yearly_stat", query,
		stat.StationID,
		stat.Year,
		stat.AvgMaxTempC,
		stat.AvgMinTempC,
		stat.TotalPrecipCm,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert yearly stat: %w", err)
	}

	return nil
}

// GetYearlyStat retrieves the stats row for (station, year)
func (r *weatherRepository) GetYearlyStat(ctx context.Context, stationID int64, year int) (*models.YearlyStat, error) {
	query := `
		SELECT id, station_id, year, avg_max_temp_c, avg_min_temp_c, total_precip_cm
		FROM weather_yearly_stats
		WHERE station_id = ? AND year = ?
	`

	var stat models.YearlyStat
	err := r.db.GetContext(ctx, "get_yearly_stat", &stat, query, stationID, year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "yearly_stat",
			ID:       models.StationYear{StationID: stationID, Year: year}.String(),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get yearly stat: %w", err)
	}

	return &stat, nil
}

// ListYearlyStats returns every stats row ordered by station and year
func (r *weatherRepository) ListYearlyStats(ctx context.Context) ([]*models.YearlyStat, error) {
	query := `
		SELECT id, station_id, year, avg_max_temp_c, avg_min_temp_c, total_precip_cm
		FROM weather_yearly_stats
		ORDER BY station_id, year
	`

	stats := []*models.YearlyStat{}
	if err := r.db.SelectContext(ctx, "list_yearly_stats", &stats, query); err != nil {
		return nil, fmt.Errorf("failed to list yearly stats: %w", err)
	}
	return stats, nil
}

// GetStatistics retrieves yearly stats joined to their station code with filtering and pagination
func (r *weatherRepository) GetStatistics(ctx context.Context, filter StatisticsFilter) ([]*models.YearlyStatView, int, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.StationCode != nil {
		where = append(where, "s.code = ?")
		args = append(args, *filter.StationCode)
	}
	if filter.Year != nil {
		where = append(where, "y.year = ?")
		args = append(args, *filter.Year)
	}

	from := `
		FROM weather_yearly_stats y
		JOIN stations s ON s.id = y.station_id
	` + whereClause(where)

	var total int
	if err := r.db.GetContext(ctx, "count_statistics", &total, "SELECT COUNT(*)"+from, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count statistics: %w", err)
	}

	query := `
		SELECT s.code AS station_code, y.year,
		       y.avg_max_temp_c, y.avg_min_temp_c, y.total_precip_cm
	` + from + `
		ORDER BY y.year, s.code
		LIMIT ? OFFSET ?
	`
	args = append(args, filter.Limit, filter.Offset)

	statistics := []*models.YearlyStatView{}
	if err := r.db.SelectContext(ctx, "get_statistics", &statistics, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get statistics: %w", err)
	}

	return statistics, total, nil
}

// HealthCheck performs a repository health check
func (r *weatherRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
