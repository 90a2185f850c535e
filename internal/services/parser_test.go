package services_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wxstats/internal/models"
	"wxstats/internal/services"
)

func TestParseLine(t *testing.T) {
	obs, err := services.ParseLine("19850101\t-22\t-128\t94")
	require.NoError(t, err)
	require.NotNil(t, obs)

	assert.Equal(t, "1985-01-01", models.SQLDate(obs.Date))
	assert.InDelta(t, -2.2, *obs.MaxTempC, 1e-9)
	assert.InDelta(t, -12.8, *obs.MinTempC, 1e-9)
	assert.InDelta(t, 0.94, *obs.PrecipCm, 1e-9)
}

func TestParseLine_MissingValues(t *testing.T) {
	obs, err := services.ParseLine("20140101  -9999  -9999  -9999")
	require.NoError(t, err)
	require.NotNil(t, obs)

	assert.Nil(t, obs.MaxTempC)
	assert.Nil(t, obs.MinTempC)
	assert.Nil(t, obs.PrecipCm)
}

func TestParseLine_WrongFieldCountSkipped(t *testing.T) {
	for _, line := range []string{
		"20200101 10 20",
		"20200101 10 20 30 40",
		"20200101",
		"   ",
	} {
		obs, err := services.ParseLine(line)
		assert.NoError(t, err, line)
		assert.Nil(t, obs, line)
	}
}

func TestParseLine_InvalidDate(t *testing.T) {
	for _, date := range []string{"2020-01-01", "20201301", "20200230", "abcdefgh"} {
		_, err := services.ParseLine(date + " 10 20 30")
		require.Error(t, err, date)
		assert.True(t, errors.Is(err, models.ErrInvalidDate), date)

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "date", verr.Field)
		assert.Equal(t, date, verr.Value)
	}
}

func TestParseLine_InvalidValue(t *testing.T) {
	_, err := services.ParseLine("20200101 10 x 30")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidValue)
	assert.NotErrorIs(t, err, models.ErrInvalidDate)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "min_temp", verr.Field)
}

// format writes an observation back in station file layout.
func format(obs *models.ParsedObservation) string {
	raw := func(v *float64, scale float64) int {
		if v == nil {
			return models.MissingValue
		}
		return int(math.Round(*v * scale))
	}
	return fmt.Sprintf("%s\t%d\t%d\t%d",
		obs.Date.Format(models.DateLayout),
		raw(obs.MaxTempC, 10), raw(obs.MinTempC, 10), raw(obs.PrecipCm, 100))
}

func TestParseLine_RoundTrip(t *testing.T) {
	dates := []string{"19850101", "19991231", "20000229", "20141231"}
	values := []int{models.MissingValue, -9998, -500, -1, 0, 1, 9, 250, 999, 4321}

	for i, date := range dates {
		for j, a := range values {
			b := values[(j+i+1)%len(values)]
			c := values[(j+2*i+3)%len(values)]
			line := fmt.Sprintf("%s %d %d %d", date, a, b, c)

			first, err := services.ParseLine(line)
			require.NoError(t, err, line)
			require.NotNil(t, first, line)

			second, err := services.ParseLine(format(first))
			require.NoError(t, err, line)
			require.NotNil(t, second, line)

			assert.True(t, first.Date.Equal(second.Date), line)
			assert.Equal(t, first.MaxTempC, second.MaxTempC, line)
			assert.Equal(t, first.MinTempC, second.MinTempC, line)
			assert.Equal(t, first.PrecipCm, second.PrecipCm, line)
		}
	}
}
