package services

import (
	"context"
	"fmt"

	"wxstats/internal/models"
	"wxstats/internal/repository"
	"wxstats/pkg/logging"
)

// StationResolver maps station codes to stored stations, creating them on first use.
type StationResolver struct {
	repo   repository.WeatherRepository
	logger *logging.StructuredLogger
}

// NewStationResolver creates a new station resolver
func NewStationResolver(repo repository.WeatherRepository, logger *logging.StructuredLogger) *StationResolver {
	return &StationResolver{repo: repo, logger: logger}
}

// ResolveStation returns the station with the given code, creating it with no
// metadata if absent. When another writer creates the same code first, the
// insert is a no-op and that writer's row is returned.
func (s *StationResolver) ResolveStation(ctx context.Context, code string) (*models.Station, error) {
	station, err := s.repo.GetStationByCode(ctx, code)
	if err == nil {
		return station, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	outcome, err := s.repo.CreateStation(ctx, code)
	if err != nil {
		return nil, err
	}

	station, err = s.repo.GetStationByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to read back station %s: %w", code, err)
	}

	s.logger.Info(ctx, "[STATION_RESOLVED] Station registered", logging.Fields{
		"station_code": code,
		"station_id":   station.ID,
		"outcome":      outcome.String(),
	})

	return station, nil
}
