package recurring

import (
	"errors"
	"regexp"
	"time"

	"github.com/vaidashi/delivery-orders/internal/models"
)

// ErrInvalidDateFormat is returned for an order date that is not a real
// YYYY-MM-DD calendar date. Its text is shown to operators as is.
var ErrInvalidDateFormat = errors.New("order_date non valida (YYYY-MM-DD)")

var orderDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseOrderDate validates the first ten characters of raw as a YYYY-MM-DD
// date, so a full timestamp such as "2024-05-06T10:00:00Z" is accepted as
// its date part.
func ParseOrderDate(raw string) (models.Date, error) {
	if len(raw) > len(models.DateLayout) {
		raw = raw[:len(models.DateLayout)]
	}

	if !orderDatePattern.MatchString(raw) {
		return models.Date{}, ErrInvalidDateFormat
	}

	date, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, ErrInvalidDateFormat
	}

	return date, nil
}

// ISOWeekday returns the ISO-8601 weekday of t: 1=Monday through 7=Sunday
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// ResolveWeekday parses raw and returns the date with its ISO weekday
func ResolveWeekday(raw string) (models.Date, int, error) {
	date, err := ParseOrderDate(raw)
	if err != nil {
		return models.Date{}, 0, err
	}
	return date, ISOWeekday(date.Time), nil
}

// WorkDate is the operational date at now: the local calendar date in loc,
// except that before cutoffHour it is still the previous day.
func WorkDate(now time.Time, cutoffHour int, loc *time.Location) models.Date {
	local := now.In(loc)
	if local.Hour() < cutoffHour {
		local = local.AddDate(0, 0, -1)
	}
	return models.DateOf(local)
}
