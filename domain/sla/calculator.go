package sla

import (
	"errors"
	"fmt"
	"math"
	"time"
)

type Status string

const (
	OnTrack   Status = "ON_TRACK"
	DueSoon   Status = "DUE_SOON"
	Breached  Status = "BREACHED"
	Concluded Status = "CONCLUDED"

	StrategyCalendar = "calendar"
	StrategyBusiness = "business"
)

var Statuses = []Status{OnTrack, DueSoon, Breached, Concluded}

type Config struct {
	TimeZone     string   `toml:"time_zone"`
	DayStrategy  string   `toml:"day_strategy" validate:"omitempty,oneof=calendar business"`
	Holidays     []string `toml:"holidays"`
	DueSoonHours int      `toml:"due_soon_hours" validate:"gte=0"`
}

// Report is the read model of a protocol deadline.
type Report struct {
	Status                 Status    `json:"status"`
	DueDate                time.Time `json:"dueDate"`
	DaysRemainingOrOverdue int       `json:"daysRemainingOrOverdue"`
}

// Calculator is stateless once built, safe for concurrent use.
type Calculator struct {
	Location         *time.Location
	Strategy         DayStrategy
	DueSoonThreshold time.Duration
}

// DefaultCalculator counts calendar days in UTC, due soon within 24 hours.
func DefaultCalculator() *Calculator {
	return &Calculator{Location: time.UTC, Strategy: CalendarDays{}, DueSoonThreshold: 24 * time.Hour}
}

func NewCalculator(c Config) (*Calculator, error) {
	loc := time.UTC
	if c.TimeZone != "" {
		l, err := time.LoadLocation(c.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("sla time zone: %w", err)
		}
		loc = l
	}
	strategy, err := ParseDayStrategy(c.DayStrategy, c.Holidays)
	if err != nil {
		return nil, err
	}
	if c.DueSoonHours < 0 {
		return nil, errors.New("sla due soon hours must not be negative")
	}
	return &Calculator{Location: loc, Strategy: strategy, DueSoonThreshold: time.Duration(c.DueSoonHours) * time.Hour}, nil
}

// ComputeDueDate adds slaDays to createdAt in the tenant location, the result keeps the location of createdAt.
func (c *Calculator) ComputeDueDate(createdAt time.Time, slaDays int) time.Time {
	if slaDays <= 0 {
		return createdAt
	}
	return c.strategy().AddDays(createdAt.In(c.location()), slaDays).In(createdAt.Location())
}

func (c *Calculator) Status(now, dueDate time.Time, concludedAt *time.Time) Status {
	if concludedAt != nil {
		return Concluded
	}
	if now.After(dueDate) {
		return Breached
	}
	if dueDate.Sub(now) <= c.DueSoonThreshold {
		return DueSoon
	}
	return OnTrack
}

// Report measures concluded protocols at their conclusion time, others at now.
func (c *Calculator) Report(now, dueDate time.Time, concludedAt *time.Time) Report {
	ref := now
	if concludedAt != nil {
		ref = *concludedAt
	}
	return Report{
		Status:                 c.Status(now, dueDate, concludedAt),
		DueDate:                dueDate,
		DaysRemainingOrOverdue: DaysBetween(ref, dueDate),
	}
}

// DaysBetween is ceil of the remaining days, or minus ceil of the overdue days.
func DaysBetween(ref, dueDate time.Time) int {
	diff := dueDate.Sub(ref)
	days := float64(24 * time.Hour)
	if diff >= 0 {
		return int(math.Ceil(float64(diff) / days))
	}
	return -int(math.Ceil(float64(-diff) / days))
}

func (c *Calculator) strategy() DayStrategy {
	if c.Strategy == nil {
		return CalendarDays{}
	}
	return c.Strategy
}

func (c *Calculator) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
