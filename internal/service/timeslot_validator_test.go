package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func TestValidateDay(t *testing.T) {
	valid := map[string]models.Day{
		"SENIN":     models.DaySenin,
		"selasa":    models.DaySelasa,
		" Rabu ":    models.DayRabu,
		"KAMIS":     models.DayKamis,
		"jumat":     models.DayJumat,
		"SABTU":     models.DaySabtu,
		"Wednesday": models.DayRabu,
	}
	for raw, expected := range valid {
		day, err := ValidateDay(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, expected, day)
	}

	for _, raw := range []string{"MINGGU", "Sunday", "", "SEN", "JUMAT'AT"} {
		_, err := ValidateDay(raw)
		appErr := requireCode(t, err, appErrors.ErrInvalidDay)
		assert.Equal(t, raw, appErr.Details["value"])
	}
}

func TestValidateTime(t *testing.T) {
	minutes, err := ValidateTime("00:00")
	require.NoError(t, err)
	assert.Equal(t, models.TimeOfDay(0), minutes)

	minutes, err = ValidateTime("23:59")
	require.NoError(t, err)
	assert.Equal(t, models.TimeOfDay(23*60+59), minutes)

	for _, raw := range []string{"7:00", "07:0", "24:00", "12:60", "0700", "07-00", "07:00:00", "ab:cd", ""} {
		_, err := ValidateTime(raw)
		requireCode(t, err, appErrors.ErrInvalidTimeFormat)
	}
}

func TestValidateOrdering(t *testing.T) {
	require.NoError(t, ValidateOrdering(models.TimeOfDay(480), models.TimeOfDay(481)))
	requireCode(t, ValidateOrdering(models.TimeOfDay(480), models.TimeOfDay(480)), appErrors.ErrEndNotAfterStart)
	requireCode(t, ValidateOrdering(models.TimeOfDay(600), models.TimeOfDay(540)), appErrors.ErrEndNotAfterStart)
}

func TestValidateSlotReportsFirstFailure(t *testing.T) {
	_, _, _, err := validateSlot("MINGGU", "25:00", "01:00")
	requireCode(t, err, appErrors.ErrInvalidDay)

	_, _, _, err = validateSlot("SENIN", "25:00", "01:00")
	appErr := requireCode(t, err, appErrors.ErrInvalidTimeFormat)
	assert.Equal(t, "start_time", appErr.Details["field"])
	assert.Equal(t, "25:00", appErr.Details["value"])

	day, start, end, err := validateSlot("sabtu", "07:15", "08:00")
	require.NoError(t, err)
	assert.Equal(t, models.DaySabtu, day)
	assert.Equal(t, "07:15", start.String())
	assert.Equal(t, "08:00", end.String())
}
