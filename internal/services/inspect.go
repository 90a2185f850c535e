package services

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// StationInspection summarizes one station file without touching the store.
type StationInspection struct {
	StationCode   string
	Path          string
	Lines         int
	Parsed        int
	Skipped       int
	MissingValues int
}

// InspectionReport is the dry-run view of a data directory.
type InspectionReport struct {
	Stations []*StationInspection
}

// Totals sums line, parsed, skipped and missing counts over every station.
func (r *InspectionReport) Totals() StationInspection {
	var t StationInspection
	for _, s := range r.Stations {
		t.Lines += s.Lines
		t.Parsed += s.Parsed
		t.Skipped += s.Skipped
		t.MissingValues += s.MissingValues
	}
	return t
}

// InspectDirectory parses every station file in dir the way ingestion does
// and reports counts. A line with an invalid date or value aborts, as it would
// during ingestion.
func InspectDirectory(dir string) (*InspectionReport, error) {
	files, err := listStationFiles(dir)
	if err != nil {
		return nil, err
	}

	report := &InspectionReport{}
	for _, path := range files {
		st, err := inspectFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", path, err)
		}
		report.Stations = append(report.Stations, st)
	}
	return report, nil
}

func inspectFile(path string) (*StationInspection, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	st := &StationInspection{StationCode: StationCodeFromPath(path), Path: path}

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		st.Lines++

		obs, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if obs == nil {
			st.Skipped++
			continue
		}

		st.Parsed++
		for _, v := range []*float64{obs.MaxTempC, obs.MinTempC, obs.PrecipCm} {
			if v == nil {
				st.MissingValues++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return st, nil
}
