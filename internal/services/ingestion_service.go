package services

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"wxstats/internal/models"
	"wxstats/internal/repository"
	"wxstats/pkg/logging"
	"wxstats/pkg/metrics"
)

// stationFileExt selects which directory entries are ingested. Matching is case-sensitive.
const stationFileExt = ".txt"

// IngestionService handles weather data ingestion
type IngestionService struct {
	repo     repository.WeatherRepository
	stations *StationResolver
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
	clock    clockwork.Clock
}

// IngestionResult contains ingestion statistics for a directory run
type IngestionResult struct {
	Files         []*FileResult
	TotalInserted int
	StartedAt     time.Time
	FinishedAt    time.Time
	Duration      time.Duration

	// AffectedYears lists the station-years that received new records, sorted.
	AffectedYears []models.StationYear
}

// TotalDuplicates sums already-present lines over all files.
func (r *IngestionResult) TotalDuplicates() int {
	n := 0
	for _, f := range r.Files {
		n += f.Duplicates
	}
	return n
}

// TotalSkipped sums malformed lines over all files.
func (r *IngestionResult) TotalSkipped() int {
	n := 0
	for _, f := range r.Files {
		n += f.Skipped
	}
	return n
}

// FileResult contains per-file ingestion statistics
type FileResult struct {
	Path       string
	Station    *models.Station
	Lines      int
	Inserted   int
	Duplicates int
	Skipped    int

	years map[int]struct{}
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	repo repository.WeatherRepository,
	stations *StationResolver,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	clock clockwork.Clock,
) *IngestionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &IngestionService{
		repo:     repo,
		stations: stations,
		logger:   logger,
		metrics:  metricsCollector,
		clock:    clock,
	}
}

// IngestDirectory ingests every station file in dataDir. The first failing
// file aborts the run; records committed before the failure are kept.
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string) (*IngestionResult, error) {
	if err := s.repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	result := &IngestionResult{StartedAt: s.clock.Now().UTC()}

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"data_dir":   dataDir,
		"started_at": result.StartedAt.Format(time.RFC3339),
	})

	files, err := listStationFiles(dataDir)
	if err != nil {
		s.metrics.RecordIngestionError("directory_error")
		return nil, err
	}

	s.logger.Info(ctx, "[INGEST_FILES] Found data files", logging.Fields{
		"file_count": len(files),
	})

	affected := make(map[models.StationYear]struct{})
	for _, path := range files {
		fileResult, err := s.IngestFile(ctx, path)
		if err != nil {
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path":       path,
				"inserted_so_far": result.TotalInserted,
			}, err)
			return nil, fmt.Errorf("failed to ingest %s: %w", path, err)
		}

		result.Files = append(result.Files, fileResult)
		result.TotalInserted += fileResult.Inserted
		for y := range fileResult.years {
			affected[models.StationYear{StationID: fileResult.Station.ID, Year: y}] = struct{}{}
		}
	}

	for k := range affected {
		result.AffectedYears = append(result.AffectedYears, k)
	}
	sort.Slice(result.AffectedYears, func(i, j int) bool {
		return result.AffectedYears[i].Less(result.AffectedYears[j])
	})

	result.FinishedAt = s.clock.Now().UTC()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_files":      len(result.Files),
		"total_inserted":   result.TotalInserted,
		"total_duplicates": result.TotalDuplicates(),
		"total_skipped":    result.TotalSkipped(),
		"started_at":       result.StartedAt.Format(time.RFC3339),
		"finished_at":      result.FinishedAt.Format(time.RFC3339),
		"duration_seconds": result.Duration.Seconds(),
	})

	return result, nil
}

// listStationFiles returns the non-directory entries of dir ending in .txt.
func listStationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), stationFileExt) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// StationCodeFromPath derives the station code from a file's base name minus its extension.
func StationCodeFromPath(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// IngestFile ingests a single station file and reports how many records were newly stored
func (s *IngestionService) IngestFile(ctx context.Context, filePath string) (*FileResult, error) {
	code := StationCodeFromPath(filePath)
	log := s.logger.WithFields(logging.Fields{
		"file_path":    filePath,
		"station_code": code,
	})

	station, err := s.stations.ResolveStation(ctx, code)
	if err != nil {
		s.metrics.RecordIngestionError("station_error")
		return nil, fmt.Errorf("failed to resolve station: %w", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		s.metrics.RecordIngestionError("file_error")
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result := &FileResult{
		Path:    filePath,
		Station: station,
		years:   make(map[int]struct{}),
	}

	log.Info(ctx, "[INGEST_FILE_START] Ingesting file", logging.Fields{
		"station_id": station.ID,
	})

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.Lines++

		parsed, err := ParseLine(line)
		if err != nil {
			s.metrics.RecordIngestionError("parse_error")
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if parsed == nil {
			result.Skipped++
			s.metrics.IngestionSkippedTotal.Inc()
			log.Debug(ctx, "[INGEST_LINE_SKIPPED] Malformed line skipped", logging.Fields{
				"line_number": lineNo,
			})
			continue
		}

		outcome, err := s.repo.InsertObservation(ctx, parsed.Record(station.ID))
		if err != nil {
			s.metrics.RecordIngestionError("insert_error")
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		switch outcome {
		case repository.Inserted:
			result.Inserted++
			result.years[parsed.Date.Year()] = struct{}{}
			s.metrics.IngestionRecordsTotal.Inc()
		case repository.AlreadyPresent:
			result.Duplicates++
			s.metrics.IngestionDuplicatesTotal.Inc()
		}
	}

	if err := scanner.Err(); err != nil {
		s.metrics.RecordIngestionError("read_error")
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	s.metrics.IngestionFilesTotal.Inc()

	log.Info(ctx, "[INGEST_FILE_COMPLETE] File ingested", logging.Fields{
		"lines":      result.Lines,
		"inserted":   result.Inserted,
		"duplicates": result.Duplicates,
		"skipped":    result.Skipped,
	})

	return result, nil
}
