package service

import (
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// ValidateDay accepts the six school days, case-insensitively, and rejects everything else.
func ValidateDay(day string) (models.Day, error) {
	parsed, ok := models.ParseDay(day)
	if !ok {
		return 0, appErrors.ErrInvalidDay.WithDetails(map[string]interface{}{
			"field": "day",
			"value": day,
		})
	}
	return parsed, nil
}

// ValidateTime parses a strict 24-hour HH:MM value.
func ValidateTime(value string) (models.TimeOfDay, error) {
	parsed, ok := models.ParseTimeOfDay(value)
	if !ok {
		return 0, appErrors.ErrInvalidTimeFormat.WithDetails(map[string]interface{}{
			"value": value,
		})
	}
	return parsed, nil
}

// ValidateOrdering requires end to be strictly after start.
func ValidateOrdering(start, end models.TimeOfDay) error {
	if end <= start {
		return appErrors.ErrEndNotAfterStart.WithDetails(map[string]interface{}{
			"field":      "end_time",
			"start_time": start.String(),
			"end_time":   end.String(),
		})
	}
	return nil
}

// validateSlot runs the three checks in order and reports the first failing field.
func validateSlot(day, start, end string) (models.Day, models.TimeOfDay, models.TimeOfDay, error) {
	parsedDay, err := ValidateDay(day)
	if err != nil {
		return 0, 0, 0, err
	}
	startTime, err := ValidateTime(start)
	if err != nil {
		return 0, 0, 0, withField(err, "start_time")
	}
	endTime, err := ValidateTime(end)
	if err != nil {
		return 0, 0, 0, withField(err, "end_time")
	}
	if err := ValidateOrdering(startTime, endTime); err != nil {
		return 0, 0, 0, err
	}
	return parsedDay, startTime, endTime, nil
}

func withField(err error, field string) error {
	return appErrors.FromError(err).WithDetails(map[string]interface{}{"field": field})
}
