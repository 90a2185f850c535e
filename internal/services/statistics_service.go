package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"wxstats/internal/models"
	"wxstats/internal/repository"
	"wxstats/pkg/logging"
	"wxstats/pkg/metrics"
)

// StatisticsService handles weather statistics calculations
type StatisticsService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	clock   clockwork.Clock
}

// AggregationResult summarizes one aggregation run
type AggregationResult struct {
	Records    int
	Groups     []models.StationYear
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(
	repo repository.WeatherRepository,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	clock clockwork.Clock,
) *StatisticsService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StatisticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		clock:   clock,
	}
}

// yearlyAccumulator sums the non-missing values of one station-year.
type yearlyAccumulator struct {
	maxSum, minSum, precipSum float64
	maxN, minN, precipN       int
}

func (a *yearlyAccumulator) add(r *models.WeatherRecord) {
	if r.MaxTempC != nil {
		a.maxSum += *r.MaxTempC
		a.maxN++
	}
	if r.MinTempC != nil {
		a.minSum += *r.MinTempC
		a.minN++
	}
	if r.PrecipCm != nil {
		a.precipSum += *r.PrecipCm
		a.precipN++
	}
}

func (a *yearlyAccumulator) stat(key models.StationYear) *models.YearlyStat {
	stat := &models.YearlyStat{StationID: key.StationID, Year: key.Year}
	if a.maxN > 0 {
		v := a.maxSum / float64(a.maxN)
		stat.AvgMaxTempC = &v
	}
	if a.minN > 0 {
		v := a.minSum / float64(a.minN)
		stat.AvgMinTempC = &v
	}
	if a.precipN > 0 {
		v := a.precipSum
		stat.TotalPrecipCm = &v
	}
	return stat
}

// ComputeYearlyStats recomputes every station-year from all stored records
// and replaces the stored aggregates.
func (s *StatisticsService) ComputeYearlyStats(ctx context.Context) (*AggregationResult, error) {
	if err := s.repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[STATS_CALC_START] Starting statistics calculation", logging.Fields{
		"mode": "full",
	})

	groups := make(map[models.StationYear]*yearlyAccumulator)
	result := &AggregationResult{StartedAt: s.clock.Now().UTC()}

	// Rows are fully read before any upsert; a single-connection store
	// cannot write while the cursor is open.
	err := s.repo.ForEachRecord(ctx, nil, func(r *models.WeatherRecord) error {
		result.Records++
		key := models.StationYear{StationID: r.StationID, Year: r.Date.Year()}
		acc, ok := groups[key]
		if !ok {
			acc = &yearlyAccumulator{}
			groups[key] = acc
		}
		acc.add(r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	if err := s.writeGroups(ctx, groups, result); err != nil {
		return nil, err
	}
	return result, nil
}

// RecomputeStationYears recomputes only the given station-years. Keys with
// no stored records are left untouched.
func (s *StatisticsService) RecomputeStationYears(ctx context.Context, keys []models.StationYear) (*AggregationResult, error) {
	if err := s.repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[STATS_CALC_START] Starting statistics calculation", logging.Fields{
		"mode":          "incremental",
		"station_years": len(keys),
	})

	groups := make(map[models.StationYear]*yearlyAccumulator)
	result := &AggregationResult{StartedAt: s.clock.Now().UTC()}

	for _, key := range keys {
		if _, seen := groups[key]; seen {
			continue
		}
		acc := &yearlyAccumulator{}
		n := 0
		err := s.repo.ForEachRecord(ctx, &repository.RecordScope{StationID: key.StationID, Year: key.Year}, func(r *models.WeatherRecord) error {
			n++
			acc.add(r)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read records for %s: %w", key, err)
		}
		result.Records += n
		if n > 0 {
			groups[key] = acc
		}
	}

	if err := s.writeGroups(ctx, groups, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *StatisticsService) writeGroups(ctx context.Context, groups map[models.StationYear]*yearlyAccumulator, result *AggregationResult) error {
	keys := make([]models.StationYear, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	for _, key := range keys {
		if err := s.repo.UpsertYearlyStat(ctx, groups[key].stat(key)); err != nil {
			s.logger.Error(ctx, "[STATS_SAVE_ERROR] Failed to save statistics", logging.Fields{
				"station_id": key.StationID,
				"year":       key.Year,
			}, err)
			return fmt.Errorf("failed to save statistics for %s: %w", key, err)
		}
		s.metrics.StatsGroupsUpserted.Inc()
	}

	result.Groups = keys
	result.FinishedAt = s.clock.Now().UTC()
	duration := result.FinishedAt.Sub(result.StartedAt)
	s.metrics.StatsCalculationDuration.Observe(duration.Seconds())

	s.logger.Info(ctx, "[STATS_CALC_COMPLETE] Statistics calculation completed", logging.Fields{
		"records":          result.Records,
		"total_statistics": len(keys),
		"duration_seconds": duration.Seconds(),
	})
	return nil
}
