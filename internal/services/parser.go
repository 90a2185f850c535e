package services

import (
	"strconv"
	"strings"
	"time"

	"wxstats/internal/models"
)

// lineFields is the number of whitespace-separated fields on a station line:
// YYYYMMDD MAXTEMP MINTEMP PRECIP
const lineFields = 4

// ParseLine parses one station file line.
//
// A line with other than four fields yields (nil, nil) and is skipped by
// callers. A line with an unparsable date or a non-integer measurement
// yields a *models.ValidationError wrapping models.ErrInvalidDate or
// models.ErrInvalidValue; callers treat those as fatal.
func ParseLine(line string) (*models.ParsedObservation, error) {
	parts := strings.Fields(line)
	if len(parts) != lineFields {
		return nil, nil
	}

	date, err := time.Parse(models.DateLayout, parts[0])
	if err != nil {
		return nil, &models.ValidationError{
			Field:   "date",
			Value:   parts[0],
			Message: "invalid date format, expected YYYYMMDD",
			Kind:    models.ErrInvalidDate,
		}
	}

	var raw [3]int
	for i, name := range [3]string{"max_temp", "min_temp", "precipitation"} {
		v, err := strconv.Atoi(parts[i+1])
		if err != nil {
			return nil, &models.ValidationError{
				Field:   name,
				Value:   parts[i+1],
				Message: "invalid measurement, expected integer tenths",
				Kind:    models.ErrInvalidValue,
			}
		}
		raw[i] = v
	}

	return &models.ParsedObservation{
		Date:     date,
		MaxTempC: models.ConvertTemperature(raw[0]),
		MinTempC: models.ConvertTemperature(raw[1]),
		PrecipCm: models.ConvertPrecipitation(raw[2]),
	}, nil
}
