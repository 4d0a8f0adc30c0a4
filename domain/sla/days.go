package sla

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

type DayStrategy interface {
	Name() string
	AddDays(from time.Time, days int) time.Time
}

func ParseDayStrategy(name string, holidays []string) (DayStrategy, error) {
	switch name {
	case "", StrategyCalendar:
		return CalendarDays{}, nil
	case StrategyBusiness:
		return NewBusinessDays(holidays)
	default:
		return nil, fmt.Errorf("unknown sla day strategy %q", name)
	}
}

type CalendarDays struct{}

func (CalendarDays) Name() string {
	return StrategyCalendar
}

func (CalendarDays) AddDays(from time.Time, days int) time.Time {
	return from.AddDate(0, 0, days)
}

// BusinessDays skips saturdays, sundays and holidays, the time of day is kept.
type BusinessDays struct {
	Holidays map[string]bool
}

func NewBusinessDays(holidays []string) (BusinessDays, error) {
	b := BusinessDays{Holidays: map[string]bool{}}
	for _, h := range holidays {
		d, err := time.Parse(dateLayout, h)
		if err != nil {
			return BusinessDays{}, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		b.Holidays[d.Format(dateLayout)] = true
	}
	return b, nil
}

func (BusinessDays) Name() string {
	return StrategyBusiness
}

func (b BusinessDays) AddDays(from time.Time, days int) time.Time {
	t := from
	for added := 0; added < days; {
		t = t.AddDate(0, 0, 1)
		if b.IsWorkingDay(t) {
			added++
		}
	}
	return t
}

func (b BusinessDays) IsWorkingDay(t time.Time) bool {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !b.Holidays[t.Format(dateLayout)]
}
