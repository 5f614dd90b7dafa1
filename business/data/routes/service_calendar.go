package routes

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// Service classes a schedule can run under. Each schedule row carries exactly one.
const (
	ServiceWeekday  = "weekday"
	ServiceSaturday = "saturday"
	ServiceSunday   = "sunday"
	ServiceHoliday  = "holiday"
)

// ServiceCalendar decides which service class a calendar date falls under,
// used to select the day's active schedules
type ServiceCalendar struct {
	calendar *cal.BusinessCalendar
}

// MakeServiceCalendar builds ServiceCalendar
// TODO:: should be customizable by transit agency rather than being hardcoded as it is now.
func MakeServiceCalendar() *ServiceCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.MemorialDay,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
		us.Juneteenth,
	)
	return &ServiceCalendar{calendar: calendar}
}

// ServiceClassOn returns the service class running on at.
// Holidays take precedence over the weekend classes.
func (c *ServiceCalendar) ServiceClassOn(at time.Time) string {
	_, observed, _ := c.calendar.IsHoliday(at)
	if observed {
		return ServiceHoliday
	}
	switch at.Weekday() {
	case time.Saturday:
		return ServiceSaturday
	case time.Sunday:
		return ServiceSunday
	}
	return ServiceWeekday
}

// GetSchedulesForDate loads the schedules active on the service day containing at
func GetSchedulesForDate(db *sqlx.DB, calendar *ServiceCalendar, at time.Time) ([]*Schedule, error) {
	return GetSchedules(db, calendar.ServiceClassOn(at))
}
