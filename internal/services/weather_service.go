package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"wxstats/internal/models"
	"wxstats/internal/repository"
	"wxstats/pkg/logging"
	"wxstats/pkg/metrics"
)

// WeatherService handles read-side weather data operations
type WeatherService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector

	statsCache  *cache.Cache
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64
}

type statsPage struct {
	rows  []*models.YearlyStatView
	total int
}

// NewWeatherService creates a new weather service. A statsTTL of zero
// disables the statistics cache.
func NewWeatherService(
	repo repository.WeatherRepository,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	statsTTL time.Duration,
) *WeatherService {
	s := &WeatherService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
	if statsTTL > 0 {
		s.statsCache = cache.New(statsTTL, 2*statsTTL)
	}
	return s
}

// GetObservations retrieves daily records with filtering
func (s *WeatherService) GetObservations(ctx context.Context, filter repository.ObservationFilter) ([]*models.ObservationView, int, error) {
	return s.repo.GetObservations(ctx, filter)
}

// GetStatistics retrieves yearly statistics with filtering, served from the
// cache while an identical query is fresh.
func (s *WeatherService) GetStatistics(ctx context.Context, filter repository.StatisticsFilter) ([]*models.YearlyStatView, int, error) {
	if s.statsCache == nil {
		return s.repo.GetStatistics(ctx, filter)
	}

	key := statsCacheKey(filter)
	if v, ok := s.statsCache.Get(key); ok {
		s.metrics.RecordCacheLookup(true, s.cacheHits.Add(1), s.cacheMisses.Load())
		page := v.(statsPage)
		return page.rows, page.total, nil
	}
	s.metrics.RecordCacheLookup(false, s.cacheHits.Load(), s.cacheMisses.Add(1))

	rows, total, err := s.repo.GetStatistics(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	s.statsCache.SetDefault(key, statsPage{rows: rows, total: total})

	s.logger.Debug(ctx, "[STATS_CACHE_FILL] Cached statistics query", logging.Fields{
		"cache_key": key,
		"total":     total,
	})
	return rows, total, nil
}

// InvalidateStatistics drops every cached statistics page.
func (s *WeatherService) InvalidateStatistics() {
	if s.statsCache != nil {
		s.statsCache.Flush()
	}
}

// GetStations retrieves known weather stations
func (s *WeatherService) GetStations(ctx context.Context, limit, offset int) ([]*models.Station, int, error) {
	return s.repo.ListStations(ctx, limit, offset)
}

// HealthCheck verifies the store is reachable
func (s *WeatherService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

func statsCacheKey(f repository.StatisticsFilter) string {
	code, year := "*", "*"
	if f.StationCode != nil {
		code = fmt.Sprintf("%q", *f.StationCode)
	}
	if f.Year != nil {
		year = fmt.Sprint(*f.Year)
	}
	return fmt.Sprintf("%s|%s|%d|%d", code, year, f.Offset, f.Limit)
}
